// Package ws implements the admin observation stream: a WebSocket endpoint
// that pushes the current set of live observations to each connected client
// on a fixed cadence, so a dashboard can follow the store without polling.
package ws
