package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goldoon/goldoon-go/pkg/credentials"
	"github.com/goldoon/goldoon-go/pkg/log"
	"github.com/goldoon/goldoon-go/pkg/netstack"
)

// Config configures a Manager.
type Config struct {
	// Credentials are read when Connect starts. Nil means an open network
	// with an empty SSID, which most radios reject in Init.
	Credentials *credentials.Store

	// Backoff paces reconnect retries after the radio refuses a request.
	Backoff BackoffConfig

	// Logger is the optional logger for operational messages.
	Logger *slog.Logger

	// ProtocolLogger receives station log events. Nil disables capture.
	ProtocolLogger log.Logger
}

// Manager synchronizes a station connection: Connect blocks until the
// network stack reports both an IPv4 and an IPv6 link-local address.
type Manager struct {
	mu sync.RWMutex

	radio   netstack.Radio
	creds   *credentials.Store
	backoff *Backoff

	logger         *slog.Logger
	protocolLogger log.Logger

	state     State
	sess      *session
	connected chan struct{}

	onStateChange  func(oldState, newState State)
	onConnected    func()
	onDisconnected func()
	callbacks      callbackQueue
}

// session is one connection attempt, from Connect to Disconnect.
type session struct {
	id     string
	sig    *signal
	bridge *bridge

	// Guarded by Manager.mu.
	closing  bool
	linkDown bool

	// setup serializes radio bring-up and teardown of this attempt.
	setup       sync.Mutex
	tornDown    bool
	initialized bool
	started     bool
}

// stateChange is a transition to report once the lock is released.
type stateChange struct {
	old, new State
}

// NewManager creates a connection manager driving radio.
func NewManager(radio netstack.Radio, cfg Config) *Manager {
	creds := cfg.Credentials
	if creds == nil {
		creds = &credentials.Store{}
	}
	return &Manager{
		radio:          radio,
		creds:          creds,
		backoff:        NewBackoffWithConfig(cfg.Backoff),
		logger:         cfg.Logger,
		protocolLogger: log.OrNoop(cfg.ProtocolLogger),
		state:          StateIdle,
		connected:      make(chan struct{}),
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected returns true if both addresses are held and the link is up.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateConnected
}

// SessionID returns the ID of the current attempt, or "" when idle.
func (m *Manager) SessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sess == nil {
		return ""
	}
	return m.sess.id
}

// Addrs returns the addresses recorded by the current attempt.
func (m *Manager) Addrs() Addrs {
	m.mu.RLock()
	s := m.sess
	m.mu.RUnlock()
	if s == nil {
		return Addrs{}
	}
	return s.sig.snapshot()
}

// WaitConnected blocks until the manager is in StateConnected or ctx ends.
func (m *Manager) WaitConnected(ctx context.Context) error {
	m.mu.RLock()
	ch := m.connected
	m.mu.RUnlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect starts a connection attempt and blocks until the station holds an
// IPv4 address and an IPv6 link-local address.
//
// It fails with ErrAlreadyConnected while another attempt exists. With a
// context that never ends the call waits indefinitely. If ctx ends first the
// attempt is rolled back and ctx.Err() is returned. Radio failures during
// bring-up are returned wrapped and leave the manager idle.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.sess != nil {
		st := m.state
		m.mu.Unlock()
		return &StateError{Op: "connect", State: st, Err: ErrAlreadyConnected}
	}
	s := &session{id: uuid.NewString(), sig: newSignal()}
	s.bridge = newBridge(m, s)
	m.sess = s
	change := m.setStateLocked(StateConnecting)
	m.mu.Unlock()
	m.notify(s, change, "connect")

	if err := s.bringUp(m.radio, netstack.StationConfig{
		SSID:     m.creds.SSID(),
		Password: m.creds.Password(),
	}); err != nil {
		m.recordError(s, log.LayerConnection, err, "connect")
		if _, terr := m.closeSession(s, "connect failed"); terr != nil {
			m.debugLog("rollback failed", "session", s.id, "error", terr)
		}
		return err
	}

	m.debugLog("waiting for addresses", "session", s.id, "ssid", m.creds.SSID())

	if err := s.sig.wait(ctx); err != nil {
		if !errors.Is(err, ErrConnectionClosed) {
			if _, terr := m.closeSession(s, "connect abandoned"); terr != nil {
				m.debugLog("rollback failed", "session", s.id, "error", terr)
			}
		}
		return err
	}

	m.mu.Lock()
	if m.sess != s || s.closing {
		m.mu.Unlock()
		return ErrConnectionClosed
	}
	next := StateConnected
	if s.linkDown {
		next = StateReconnecting
	}
	change = m.setStateLocked(next)
	m.mu.Unlock()
	m.notify(s, change, "addresses acquired")

	if m.logger != nil {
		addrs := s.sig.snapshot()
		m.logger.Info("station connected",
			"ssid", m.creds.SSID(),
			"ipv4", addrs.IPv4,
			"ipv6", addrs.IPv6LinkLocal)
	}
	return nil
}

// Disconnect ends the current attempt: the signal is destroyed, the bridge
// handlers are unregistered, then the radio is stopped and released.
// It fails with ErrNotConnected when no attempt exists.
func (m *Manager) Disconnect() error {
	m.mu.RLock()
	s := m.sess
	st := m.state
	m.mu.RUnlock()

	if s == nil {
		return &StateError{Op: "disconnect", State: st, Err: ErrNotConnected}
	}
	ok, err := m.closeSession(s, "disconnect")
	if !ok {
		return &StateError{Op: "disconnect", State: m.State(), Err: ErrNotConnected}
	}
	return err
}

// OnStateChange sets a callback for state changes.
//
// Callbacks run one at a time, in the order of the transitions, on a
// goroutine of their own. They may call Connect or Disconnect.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// OnConnected sets a callback for entering StateConnected.
func (m *Manager) OnConnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnected = fn
}

// OnDisconnected sets a callback for leaving StateConnected.
func (m *Manager) OnDisconnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnected = fn
}

// closeSession destroys the signal of s and tears the attempt down. It
// reports false when s is not the current attempt or is already closing.
func (m *Manager) closeSession(s *session, reason string) (bool, error) {
	m.mu.Lock()
	if m.sess != s || s.closing {
		m.mu.Unlock()
		return false, nil
	}
	s.closing = true
	s.sig.destroy()
	change := m.setStateLocked(StateDisconnecting)
	m.mu.Unlock()
	m.notify(s, change, reason)

	err := s.teardown(m.radio)
	if err != nil {
		m.recordError(s, log.LayerRadio, err, "teardown")
	}

	m.mu.Lock()
	m.sess = nil
	change = m.setStateLocked(StateIdle)
	m.mu.Unlock()
	m.notify(s, change, reason)

	return true, err
}

// linkLost is called by the bridge on StationDisconnected.
func (m *Manager) linkLost(s *session, reason string) {
	m.mu.Lock()
	if m.sess != s || s.closing {
		m.mu.Unlock()
		return
	}
	s.linkDown = true
	var change stateChange
	if m.state == StateConnected {
		change = m.setStateLocked(StateReconnecting)
	}
	m.mu.Unlock()

	if reason == "" {
		reason = "link lost"
	}
	m.notify(s, change, reason)
}

// linkRestored is called by the bridge on GotIPv4.
func (m *Manager) linkRestored(s *session) {
	m.mu.Lock()
	if m.sess != s || s.closing {
		m.mu.Unlock()
		return
	}
	s.linkDown = false
	var change stateChange
	if m.state == StateReconnecting {
		change = m.setStateLocked(StateConnected)
	}
	m.mu.Unlock()
	m.notify(s, change, "link restored")
}

// setStateLocked moves to next, maintains the connected latch and queues
// the callbacks for the transition. Must be called with m.mu held.
func (m *Manager) setStateLocked(next State) stateChange {
	old := m.state
	if old == next {
		return stateChange{}
	}
	m.state = next
	if next == StateConnected {
		close(m.connected)
	} else if old == StateConnected {
		m.connected = make(chan struct{})
	}

	onStateChange := m.onStateChange
	onConnected := m.onConnected
	onDisconnected := m.onDisconnected
	if onStateChange != nil || onConnected != nil || onDisconnected != nil {
		m.callbacks.push(func() {
			if onStateChange != nil {
				onStateChange(old, next)
			}
			if next == StateConnected && onConnected != nil {
				onConnected()
			}
			if old == StateConnected && onDisconnected != nil {
				onDisconnected()
			}
		})
	}
	return stateChange{old: old, new: next}
}

// notify reports a transition to the logs. A zero change is ignored.
func (m *Manager) notify(s *session, c stateChange, reason string) {
	if c == (stateChange{}) {
		return
	}

	m.debugLog("state change", "session", s.id, "from", c.old, "to", c.new, "reason", reason)
	m.record(s, log.Event{
		Layer:    log.LayerConnection,
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: c.old.String(),
			NewState: c.new.String(),
			Reason:   reason,
		},
	})
}

func (m *Manager) record(s *session, ev log.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	ev.SessionID = s.id
	ev.SSID = m.creds.SSID()
	m.protocolLogger.Log(ev)
}

func (m *Manager) recordError(s *session, layer log.Layer, err error, op string) {
	m.record(s, log.Event{
		Layer:    log.LayerConnection,
		Category: log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: op,
		},
	})
}

func (m *Manager) debugLog(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}

// bringUp initializes the radio, registers the bridge, starts the radio and
// issues the first connect request.
func (s *session) bringUp(radio netstack.Radio, cfg netstack.StationConfig) error {
	s.setup.Lock()
	defer s.setup.Unlock()

	if s.tornDown {
		return ErrConnectionClosed
	}
	if err := radio.Init(cfg); err != nil {
		return fmt.Errorf("init radio: %w", err)
	}
	s.initialized = true

	if err := s.bridge.register(radio.Events()); err != nil {
		return err
	}

	if err := radio.Start(); err != nil {
		return fmt.Errorf("start radio: %w", err)
	}
	s.started = true

	if err := radio.Connect(); err != nil {
		return fmt.Errorf("connect radio: %w", err)
	}
	return nil
}

// teardown undoes whatever bringUp completed: handlers first, then the radio.
func (s *session) teardown(radio netstack.Radio) error {
	s.setup.Lock()
	defer s.setup.Unlock()

	s.tornDown = true
	var errs []error

	if err := s.bridge.unregister(radio.Events()); err != nil {
		errs = append(errs, err)
	}

	if s.started {
		if err := radio.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop radio: %w", err))
		}
		s.started = false
	}
	if s.initialized {
		if err := radio.Deinit(); err != nil {
			errs = append(errs, fmt.Errorf("deinit radio: %w", err))
		}
		s.initialized = false
	}
	return errors.Join(errs...)
}
