// Package resource implements the station's CoAP resources.
//
// Two GET resources exist:
//
//	/About  text/plain        "18.20 is leaving us"
//	/elahe  application/json  {"name":"elahe","timestamp":1767225600000}
//
// The elahe timestamp is in milliseconds and strictly increases between
// responses, even when the wall clock stalls or steps backwards. A request
// with Accept: application/cbor gets the same object encoded as CBOR.
//
// Handlers only build the body and its content format; framing, tokens and
// retransmission are left to go-coap.
package resource
