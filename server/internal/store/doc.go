// Package store manages the aggregation server's in-memory observation state.
// It provides a thread-safe keyed store bounded to a fixed number of stations,
// with TTL-based expiry, oldest-first eviction at insertion time, and a
// crash-safe on-disk snapshot (temp file, fsync, atomic rename).
package store
