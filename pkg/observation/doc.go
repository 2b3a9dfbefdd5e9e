// Package observation defines the weather record exchanged between the
// content publisher, the aggregation server and the query client. A record
// is an opaque field→value mapping with one mandatory field, "id"; all other
// fields are carried verbatim and survive a JSON round-trip unchanged.
package observation
