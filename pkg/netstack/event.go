package netstack

import (
	"fmt"
	"net/netip"
)

// EventKind identifies a network stack lifecycle event.
type EventKind uint8

const (
	// StationDisconnected reports loss of association with the access point.
	StationDisconnected EventKind = iota + 1

	// StationConnected reports association with the access point.
	StationConnected

	// GotIPv4 reports an IPv4 address on the station interface.
	GotIPv4

	// GotIPv6LinkLocal reports a usable IPv6 link-local address.
	GotIPv6LinkLocal
)

// Kinds lists every event kind in declaration order.
var Kinds = []EventKind{StationDisconnected, StationConnected, GotIPv4, GotIPv6LinkLocal}

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case StationDisconnected:
		return "STA_DISCONNECTED"
	case StationConnected:
		return "STA_CONNECTED"
	case GotIPv4:
		return "GOT_IP4"
	case GotIPv6LinkLocal:
		return "GOT_IP6_LINKLOCAL"
	default:
		return fmt.Sprintf("EVENT(%d)", uint8(k))
	}
}

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	return k >= StationDisconnected && k <= GotIPv6LinkLocal
}

// Event is a single notification from the network stack.
type Event struct {
	Kind EventKind

	// Addr is the acquired address for GotIPv4 and GotIPv6LinkLocal.
	Addr netip.Addr

	// Reason describes why the station disconnected, when known.
	Reason string
}

func (e Event) String() string {
	switch {
	case e.Addr.IsValid():
		return e.Kind.String() + " " + e.Addr.String()
	case e.Reason != "":
		return e.Kind.String() + " (" + e.Reason + ")"
	default:
		return e.Kind.String()
	}
}

// Handler receives events of the kind it was registered for.
type Handler func(Event)
