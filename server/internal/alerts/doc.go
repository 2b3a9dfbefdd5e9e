// Package alerts evaluates threshold rules against incoming observations and
// delivers webhook notifications when a rule fires or resolves. Rules compare
// one numeric observation field against a constant, e.g. "air_temp > 40".
package alerts
