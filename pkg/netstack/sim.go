package netstack

import (
	"log/slog"
	"net/netip"
	"slices"
	"sync"
	"time"
)

// SimConfig configures a SimRadio.
type SimConfig struct {
	// AutoAssociate makes Connect report StationConnected by itself.
	// Without it, tests drive association with Inject.
	AutoAssociate bool

	// IPv4 is reported as GotIPv4 after association when valid.
	IPv4 netip.Addr

	// IPv6LinkLocal is reported as GotIPv6LinkLocal when requested, if valid.
	// Leave it unset to model a backend without IPv6 link-local support.
	IPv6LinkLocal netip.Addr

	// DHCPDelay delays the GotIPv4 event after association.
	DHCPDelay time.Duration

	// Logger is the optional logger for debug output.
	Logger *slog.Logger
}

// DefaultSimConfig returns a SimRadio configuration that associates on its
// own and hands out documentation addresses.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		AutoAssociate: true,
		IPv4:          netip.MustParseAddr("192.0.2.5"),
		IPv6LinkLocal: netip.MustParseAddr("fe80::1"),
		DHCPDelay:     50 * time.Millisecond,
	}
}

// SimCalls counts the commands a SimRadio received.
type SimCalls struct {
	Init                int
	Start               int
	Connect             int
	CreateIPv6LinkLocal int
	Stop                int
	Deinit              int
}

// SimRadio is an in-process Radio. Commands are recorded and, when
// configured, answered with the events a real station would produce.
type SimRadio struct {
	mu          sync.Mutex
	cfg         SimConfig
	events      *Dispatcher
	station     StationConfig
	initialized bool
	started     bool
	associated  bool
	calls       SimCalls
	connectErr  error
	timers      []*time.Timer
}

// NewSimRadio creates a simulated radio publishing to d.
func NewSimRadio(d *Dispatcher, cfg SimConfig) *SimRadio {
	return &SimRadio{cfg: cfg, events: d}
}

// Events returns the dispatcher the radio publishes to.
func (r *SimRadio) Events() EventSource { return r.events }

// Init implements Radio.
func (r *SimRadio) Init(cfg StationConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.Init++
	if r.initialized {
		return ErrAlreadyInitialized
	}
	r.initialized = true
	r.station = cfg
	r.debug("init", "ssid", cfg.SSID)
	return nil
}

// Start implements Radio.
func (r *SimRadio) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.Start++
	if !r.initialized {
		return ErrNotInitialized
	}
	if r.started {
		return ErrAlreadyStarted
	}
	r.started = true
	return nil
}

// Connect implements Radio.
func (r *SimRadio) Connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.Connect++
	if !r.started {
		return ErrNotStarted
	}
	if r.connectErr != nil {
		return r.connectErr
	}
	r.debug("connect", "ssid", r.station.SSID, "attempt", r.calls.Connect)
	if !r.cfg.AutoAssociate {
		return nil
	}

	r.associated = true
	_ = r.events.Post(Event{Kind: StationConnected})
	if r.cfg.IPv4.IsValid() {
		r.after(r.cfg.DHCPDelay, Event{Kind: GotIPv4, Addr: r.cfg.IPv4})
	}
	return nil
}

// CreateIPv6LinkLocal implements Radio.
func (r *SimRadio) CreateIPv6LinkLocal() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.CreateIPv6LinkLocal++
	if !r.started {
		return ErrNotStarted
	}
	if r.cfg.AutoAssociate && r.cfg.IPv6LinkLocal.IsValid() {
		_ = r.events.Post(Event{Kind: GotIPv6LinkLocal, Addr: r.cfg.IPv6LinkLocal})
	}
	return nil
}

// Stop implements Radio.
func (r *SimRadio) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.Stop++
	if !r.started {
		return ErrNotStarted
	}
	for _, t := range r.timers {
		t.Stop()
	}
	r.timers = nil
	r.started = false
	r.associated = false
	return nil
}

// Deinit implements Radio.
func (r *SimRadio) Deinit() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.Deinit++
	if !r.initialized {
		return ErrNotInitialized
	}
	if r.started {
		return ErrRunning
	}
	r.initialized = false
	r.station = StationConfig{}
	return nil
}

// Inject publishes ev as if the stack had produced it.
func (r *SimRadio) Inject(ev Event) error {
	r.mu.Lock()
	switch ev.Kind {
	case StationConnected:
		r.associated = true
	case StationDisconnected:
		r.associated = false
	}
	r.mu.Unlock()
	return r.events.Post(ev)
}

// Drop simulates losing the access point.
func (r *SimRadio) Drop(reason string) error {
	return r.Inject(Event{Kind: StationDisconnected, Reason: reason})
}

// SetConnectError makes subsequent Connect calls fail with err.
// Pass nil to restore normal behavior.
func (r *SimRadio) SetConnectError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectErr = err
}

// Calls returns a snapshot of the command counters.
func (r *SimRadio) Calls() SimCalls {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Station returns the configuration passed to Init.
func (r *SimRadio) Station() StationConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.station
}

// Associated reports whether the simulated station is associated.
func (r *SimRadio) Associated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.associated
}

// after posts ev once d has elapsed, unless the radio is stopped first.
// Must be called with r.mu held.
func (r *SimRadio) after(d time.Duration, ev Event) {
	if d <= 0 {
		_ = r.events.Post(ev)
		return
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		r.mu.Lock()
		live := r.started && r.associated && slices.Contains(r.timers, t)
		r.mu.Unlock()
		if live {
			_ = r.events.Post(ev)
		}
	})
	r.timers = append(r.timers, t)
}

func (r *SimRadio) debug(msg string, args ...any) {
	if r.cfg.Logger != nil {
		r.cfg.Logger.Debug("sim radio: "+msg, args...)
	}
}

var _ Radio = (*SimRadio)(nil)
