// Package query implements the query client: one GET against the aggregation
// server with transport-level retries, Lamport clock bookkeeping, and
// pretty-printing of the returned observations.
package query
