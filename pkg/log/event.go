package log

import (
	"time"

	"github.com/goldoon/goldoon-go/pkg/netstack"
)

// Event is a single station log record.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the connection attempt the event belongs to.
	// Empty for events outside a connection attempt.
	SessionID string `cbor:"2,keyasint,omitempty"`

	// Layer where the event was captured.
	Layer Layer `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// SSID of the network in use, if any.
	SSID string `cbor:"5,keyasint,omitempty"`

	// RemoteAddr is the CoAP peer address (IP:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Net         *NetEvent         `cbor:"10,keyasint,omitempty"` // Radio layer
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"` // Connection/server state
	Exchange    *ExchangeEvent    `cbor:"12,keyasint,omitempty"` // CoAP layer
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"` // Errors at any layer
}

// Layer indicates which part of the station captured the event.
type Layer uint8

const (
	// LayerRadio is the network stack boundary.
	LayerRadio Layer = 0
	// LayerConnection is the connection synchronizer.
	LayerConnection Layer = 1
	// LayerCoAP is the resource server.
	LayerCoAP Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerRadio:
		return "RADIO"
	case LayerConnection:
		return "CONNECTION"
	case LayerCoAP:
		return "COAP"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryNet indicates a network stack event.
	CategoryNet Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryExchange indicates a CoAP request/response exchange.
	CategoryExchange Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryNet:
		return "NET"
	case CategoryState:
		return "STATE"
	case CategoryExchange:
		return "EXCHANGE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// NetEvent captures a network stack event as seen by the event bridge.
type NetEvent struct {
	// Kind is the stack event kind.
	Kind netstack.EventKind `cbor:"1,keyasint"`

	// Addr is the acquired address, if any.
	Addr string `cbor:"2,keyasint,omitempty"`

	// Reason for a disconnect, if reported.
	Reason string `cbor:"3,keyasint,omitempty"`

	// Action the bridge took in response (e.g. "reconnect").
	Action string `cbor:"4,keyasint,omitempty"`
}

// NetEventFrom converts a stack event.
func NetEventFrom(ev netstack.Event, action string) *NetEvent {
	n := &NetEvent{Kind: ev.Kind, Reason: ev.Reason, Action: action}
	if ev.Addr.IsValid() {
		n.Addr = ev.Addr.String()
	}
	return n
}

// StateChangeEvent captures lifecycle transitions.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntityServer indicates a resource server state change.
	StateEntityServer StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityServer:
		return "SERVER"
	default:
		return "UNKNOWN"
	}
}

// ExchangeEvent captures one CoAP request and the response produced for it.
type ExchangeEvent struct {
	// Method is the request code name (GET, POST, ...).
	Method string `cbor:"1,keyasint"`

	// Path is the request URI path.
	Path string `cbor:"2,keyasint,omitempty"`

	// Token is the request token.
	Token []byte `cbor:"3,keyasint,omitempty"`

	// Confirmable is set for CON requests.
	Confirmable bool `cbor:"4,keyasint,omitempty"`

	// Code is the response code, e.g. "Content".
	Code string `cbor:"5,keyasint,omitempty"`

	// ContentFormat is the response media type, -1 when absent.
	ContentFormat int `cbor:"6,keyasint"`

	// Size is the response body size in bytes.
	Size int `cbor:"7,keyasint,omitempty"`

	// ProcessingTime is the handler duration, stored as nanoseconds.
	ProcessingTime *time.Duration `cbor:"8,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
