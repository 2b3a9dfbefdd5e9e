// Package server implements the aggregation server: a TCP accept loop feeding
// a fixed worker pool, the GET/PUT request handlers with their Lamport-clock
// discipline, a background sweeper that expires stale observations, and the
// Created→Starting→Running→Stopping→Stopped lifecycle with a readiness
// signal and a final snapshot flush on shutdown.
package server
