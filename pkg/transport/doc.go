// Package transport serves the station's CoAP resources over UDP.
//
// The server is a thin shell around go-coap: it owns the listener, routes
// requests to the handlers from package resource and records every
// request/response exchange to the station log.
//
// # Ports
//
//	5683  default CoAP port
//	1378  alternative port used by the elahe build
//
// # Run loop
//
// Run mirrors a firmware server task: it waits until the station is
// connected, binds the socket and serves. If the listener cannot be bound
// or fails later, it re-binds after an exponential backoff until the
// context ends.
package transport
