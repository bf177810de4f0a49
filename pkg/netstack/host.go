package netstack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"
)

// InterfaceState is a snapshot of an operating system interface.
type InterfaceState struct {
	Up    bool
	Addrs []netip.Addr
}

// InterfaceSource looks up interface state by name.
type InterfaceSource interface {
	Interface(name string) (InterfaceState, error)
}

// OSInterfaces reads interface state from the operating system.
type OSInterfaces struct{}

// Interface implements InterfaceSource.
func (OSInterfaces) Interface(name string) (InterfaceState, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return InterfaceState{}, err
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return InterfaceState{}, err
	}
	st := InterfaceState{Up: iface.Flags&net.FlagUp != 0}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if addr, ok := netip.AddrFromSlice(ipnet.IP); ok {
			st.Addrs = append(st.Addrs, addr.Unmap())
		}
	}
	return st, nil
}

// HostConfig configures a HostRadio.
type HostConfig struct {
	// Interface is the operating system interface standing in for the
	// station interface, e.g. "wlan0".
	Interface string

	// PollInterval is how often the interface is inspected.
	// Default: 500ms.
	PollInterval time.Duration

	// Source overrides the interface lookup. Default: OSInterfaces.
	Source InterfaceSource

	// Logger is the optional logger for debug output.
	Logger *slog.Logger
}

// HostRadio drives the station lifecycle from a host network interface.
// Association itself is left to the operating system; the radio reports
// link and address changes of the interface as stack events. The SSID and
// passphrase passed to Init are only recorded.
type HostRadio struct {
	cfg    HostConfig
	events *Dispatcher

	mu            sync.Mutex
	station       StationConfig
	initialized   bool
	started       bool
	wantAssoc     bool
	wantLinkLocal bool
	associated    bool
	ipv4          netip.Addr
	ipv6          netip.Addr

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHostRadio creates a radio that follows cfg.Interface.
func NewHostRadio(d *Dispatcher, cfg HostConfig) (*HostRadio, error) {
	if cfg.Interface == "" {
		return nil, errors.New("host radio: interface name is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Source == nil {
		cfg.Source = OSInterfaces{}
	}
	return &HostRadio{cfg: cfg, events: d}, nil
}

// Events implements Radio.
func (h *HostRadio) Events() EventSource { return h.events }

// Init implements Radio.
func (h *HostRadio) Init(cfg StationConfig) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initialized {
		return ErrAlreadyInitialized
	}
	if _, err := h.cfg.Source.Interface(h.cfg.Interface); err != nil {
		return fmt.Errorf("host radio: %s: %w", h.cfg.Interface, err)
	}
	h.initialized = true
	h.station = cfg
	return nil
}

// Start implements Radio.
func (h *HostRadio) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.initialized {
		return ErrNotInitialized
	}
	if h.started {
		return ErrAlreadyStarted
	}
	h.started = true

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.wg.Add(1)
	go h.pollLoop(ctx)
	return nil
}

// Connect implements Radio.
func (h *HostRadio) Connect() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return ErrNotStarted
	}
	h.wantAssoc = true
	h.debug("association requested", "ssid", h.station.SSID)
	return nil
}

// CreateIPv6LinkLocal implements Radio.
func (h *HostRadio) CreateIPv6LinkLocal() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return ErrNotStarted
	}
	h.wantLinkLocal = true
	return nil
}

// Stop implements Radio.
func (h *HostRadio) Stop() error {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return ErrNotStarted
	}
	h.started = false
	cancel := h.cancel
	h.cancel = nil
	h.mu.Unlock()

	cancel()
	h.wg.Wait()

	h.mu.Lock()
	h.wantAssoc = false
	h.wantLinkLocal = false
	h.associated = false
	h.ipv4 = netip.Addr{}
	h.ipv6 = netip.Addr{}
	h.mu.Unlock()
	return nil
}

// Deinit implements Radio.
func (h *HostRadio) Deinit() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.initialized {
		return ErrNotInitialized
	}
	if h.started {
		return ErrRunning
	}
	h.initialized = false
	h.station = StationConfig{}
	return nil
}

func (h *HostRadio) pollLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()

	h.poll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.poll()
		}
	}
}

// poll compares the interface with the last reported state and publishes
// the difference.
func (h *HostRadio) poll() {
	st, err := h.cfg.Source.Interface(h.cfg.Interface)
	up := err == nil && st.Up

	var evs []Event
	h.mu.Lock()
	switch {
	case h.associated && !up:
		reason := "link down"
		if err != nil {
			reason = err.Error()
		}
		h.associated = false
		h.ipv4 = netip.Addr{}
		h.ipv6 = netip.Addr{}
		evs = append(evs, Event{Kind: StationDisconnected, Reason: reason})
	case !h.associated && up && h.wantAssoc:
		h.associated = true
		h.wantAssoc = false
		evs = append(evs, Event{Kind: StationConnected})
	}
	if h.associated {
		if v4 := firstAddr(st.Addrs, isStationIPv4); v4.IsValid() && v4 != h.ipv4 {
			h.ipv4 = v4
			evs = append(evs, Event{Kind: GotIPv4, Addr: v4})
		}
		if h.wantLinkLocal {
			if ll := firstAddr(st.Addrs, netip.Addr.IsLinkLocalUnicast, netip.Addr.Is6); ll.IsValid() && ll != h.ipv6 {
				h.ipv6 = ll
				evs = append(evs, Event{Kind: GotIPv6LinkLocal, Addr: ll})
			}
		}
	}
	h.mu.Unlock()

	for _, ev := range evs {
		h.debug("interface change", "event", ev.String())
		_ = h.events.Post(ev)
	}
}

// isStationIPv4 accepts a routable lease; 169.254.0.0/16 autoconfiguration
// addresses do not count.
func isStationIPv4(a netip.Addr) bool {
	return a.Is4() && !a.IsLoopback() && !a.IsUnspecified() && !a.IsLinkLocalUnicast()
}

func firstAddr(addrs []netip.Addr, preds ...func(netip.Addr) bool) netip.Addr {
next:
	for _, a := range addrs {
		for _, p := range preds {
			if !p(a) {
				continue next
			}
		}
		return a
	}
	return netip.Addr{}
}

func (h *HostRadio) debug(msg string, args ...any) {
	if h.cfg.Logger != nil {
		h.cfg.Logger.Debug("host radio: "+msg, append(args, "iface", h.cfg.Interface)...)
	}
}

var _ Radio = (*HostRadio)(nil)
