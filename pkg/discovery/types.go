package discovery

import "errors"

// Service constants for mDNS.
const (
	// ServiceTypeCoAP is the DNS-SD service type of a CoAP server on UDP.
	ServiceTypeCoAP = "_coap._udp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default CoAP port.
	DefaultPort = 5683

	// MaxInstanceNameLen is the DNS label limit for instance names.
	MaxInstanceNameLen = 63

	// InstancePrefix starts every generated instance name.
	InstancePrefix = "goldoon-"
)

// TXT record keys.
const (
	TXTKeyInstanceID = "id"
	TXTKeyResources  = "res"
	TXTKeyFirmware   = "fw"
	TXTKeySSID       = "ssid"
)

// Discovery errors.
var (
	ErrMissingRequired     = errors.New("missing required TXT field")
	ErrInstanceNameTooLong = errors.New("instance name too long")
	ErrNotAdvertising      = errors.New("not advertising")
)

// ServiceInfo describes the advertised CoAP endpoint.
type ServiceInfo struct {
	// InstanceID is stable across restarts; the instance name derives from it.
	InstanceID string

	// Port is the CoAP UDP port (default: DefaultPort).
	Port uint16

	// Resources lists the served paths, e.g. "/About".
	Resources []string

	// Firmware is the firmware version string (optional).
	Firmware string

	// SSID is the joined network (optional).
	SSID string
}

// InstanceName returns the DNS-SD instance name for info.
func (info *ServiceInfo) InstanceName() string {
	name := InstancePrefix + info.InstanceID
	if len(name) > MaxInstanceNameLen {
		name = name[:MaxInstanceNameLen]
	}
	return name
}

// DiscoveryState represents the advertisement state.
type DiscoveryState uint8

const (
	// StateIdle means nothing is advertised.
	StateIdle DiscoveryState = iota

	// StateAdvertising means the endpoint is announced.
	StateAdvertising
)

// String returns the state name.
func (s DiscoveryState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAdvertising:
		return "ADVERTISING"
	default:
		return "UNKNOWN"
	}
}
