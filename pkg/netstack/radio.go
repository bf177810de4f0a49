package netstack

import "errors"

// Radio errors.
var (
	ErrNotInitialized     = errors.New("radio not initialized")
	ErrAlreadyInitialized = errors.New("radio already initialized")
	ErrNotStarted         = errors.New("radio not started")
	ErrAlreadyStarted     = errors.New("radio already started")
	ErrNotAssociated      = errors.New("station not associated")
)

// StationConfig is the station mode configuration handed to Radio.Init.
type StationConfig struct {
	SSID     string
	Password string
}

// EventSource lets callers subscribe to network stack events.
type EventSource interface {
	// Register installs h for events of the given kind.
	Register(kind EventKind, h Handler) (Registration, error)

	// Unregister removes a handler. When it returns the handler is not
	// running and will not run again. It must not be called from a handler.
	Unregister(reg Registration) error
}

// Radio is the command side of the network stack.
//
// The expected lifecycle is Init, Start, Connect (repeated on every
// disconnect), then Stop and Deinit. CreateIPv6LinkLocal is requested once
// the station is associated.
type Radio interface {
	// Init initializes the radio in station mode with cfg.
	Init(cfg StationConfig) error

	// Start powers the radio up.
	Start() error

	// Connect requests association with the configured access point.
	// It returns once the request is queued; progress is reported as events.
	Connect() error

	// CreateIPv6LinkLocal requests an IPv6 link-local address on the
	// station interface.
	CreateIPv6LinkLocal() error

	// Stop powers the radio down.
	Stop() error

	// Deinit releases the radio.
	Deinit() error

	// Events returns the source the radio publishes events to.
	Events() EventSource
}

// ErrRunning is returned by Deinit while the radio is still started.
var ErrRunning = errors.New("radio is running")
