// Package lamport implements the Lamport logical clock shared by the
// aggregation server, the content publisher and the query client.
package lamport
