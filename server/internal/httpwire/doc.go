// Package httpwire implements the aggregation protocol's line-oriented HTTP
// exchange: reading one request (request line, headers, body) from a
// connection and writing one response. Only the Content-Length and
// Lamport-Clock headers are interpreted; all others are ignored. Header
// names match case-insensitively.
package httpwire
