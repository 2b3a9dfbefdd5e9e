// Package admin implements the optional HTTP surface served next to the
// aggregation protocol listener:
//
//	GET /metrics         — Prometheus exposition of server metrics
//	GET /ws/stream       — WebSocket observation feed
//	GET /api/v1/health   — live station count
//	GET /api/v1/alerts   — threshold breaches currently in effect
//
// All JSON endpoints respond with Content-Type: application/json and return
// 405 for non-GET methods.
package admin
