package connection

import (
	"errors"
	"fmt"
)

// Connection errors.
var (
	// ErrInvalidState is returned when an operation does not fit the
	// manager's current state.
	ErrInvalidState = errors.New("invalid connection state")

	// ErrAlreadyConnected is returned by Connect while an attempt exists.
	ErrAlreadyConnected = fmt.Errorf("%w: connection already in progress", ErrInvalidState)

	// ErrNotConnected is returned by Disconnect without a prior Connect.
	ErrNotConnected = fmt.Errorf("%w: not connected", ErrInvalidState)

	// ErrConnectionClosed is returned by a blocked Connect when a concurrent
	// Disconnect tears the attempt down.
	ErrConnectionClosed = errors.New("connection closed")
)

// StateError reports an operation rejected because of the manager state.
// It matches ErrInvalidState and the more specific sentinel in Err.
type StateError struct {
	Op    string
	State State
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("connection: %s in state %s: %v", e.Op, e.State, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// State represents the connection state.
type State uint8

const (
	// StateIdle indicates no connection attempt exists.
	StateIdle State = iota

	// StateConnecting indicates Connect is waiting for both addresses.
	StateConnecting

	// StateConnected indicates both addresses were acquired and the link is up.
	StateConnected

	// StateReconnecting indicates the link dropped after connecting and the
	// bridge is re-associating.
	StateReconnecting

	// StateDisconnecting indicates Disconnect is tearing the radio down.
	StateDisconnecting
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateDisconnecting:
		return "DISCONNECTING"
	default:
		return "UNKNOWN"
	}
}
