// Package config loads the aggregation server's configuration: an optional
// YAML file layered over built-in defaults, with a handful of environment
// overrides (resolved after an optional .env file).
package config
