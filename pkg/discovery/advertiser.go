package discovery

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Advertiser provides mDNS service advertising capabilities.
type Advertiser interface {
	// Advertise starts announcing the endpoint. An existing announcement
	// is replaced.
	Advertise(ctx context.Context, info *ServiceInfo) error

	// Update replaces the TXT records of the current announcement.
	Update(info *ServiceInfo) error

	// Stop withdraws the announcement. It is a no-op when idle.
	Stop() error
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{
		Interface: "",
		TTL:       120 * time.Second,
	}
}

// DiscoveryManager ties the announcement to the station's connectivity.
type DiscoveryManager struct {
	mu sync.RWMutex

	state      DiscoveryState
	advertiser Advertiser
	info       *ServiceInfo
	logger     *slog.Logger

	onStateChange func(old, new DiscoveryState)
}

// NewDiscoveryManager creates a discovery manager announcing info.
func NewDiscoveryManager(advertiser Advertiser, info *ServiceInfo) *DiscoveryManager {
	return &DiscoveryManager{
		state:      StateIdle,
		advertiser: advertiser,
		info:       info,
	}
}

// SetLogger sets the logger for operational messages.
func (m *DiscoveryManager) SetLogger(logger *slog.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}

// State returns the current discovery state.
func (m *DiscoveryManager) State() DiscoveryState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// OnStateChange sets a callback for state changes.
func (m *DiscoveryManager) OnStateChange(fn func(old, new DiscoveryState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// SetServiceInfo replaces the announced information. A running
// announcement is updated in place.
func (m *DiscoveryManager) SetServiceInfo(info *ServiceInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.info = info
	if m.state != StateAdvertising {
		return nil
	}
	return m.advertiser.Update(info)
}

// HandleConnected starts the announcement. Calling it while advertising
// re-announces, which refreshes peers' caches after a reconnect.
func (m *DiscoveryManager) HandleConnected(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.info == nil || m.info.InstanceID == "" {
		return ErrMissingRequired
	}
	if err := m.advertiser.Advertise(ctx, m.info); err != nil {
		return err
	}
	if m.logger != nil {
		m.logger.Info("advertising coap endpoint",
			"instance", m.info.InstanceName(),
			"port", m.info.Port)
	}
	m.setStateLocked(StateAdvertising)
	return nil
}

// HandleDisconnected withdraws the announcement.
func (m *DiscoveryManager) HandleDisconnected() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAdvertising {
		return ErrNotAdvertising
	}
	if err := m.advertiser.Stop(); err != nil {
		return err
	}
	m.setStateLocked(StateIdle)
	return nil
}

// Stop withdraws any announcement.
func (m *DiscoveryManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	_ = m.advertiser.Stop()
	m.setStateLocked(StateIdle)
}

func (m *DiscoveryManager) setStateLocked(next DiscoveryState) {
	old := m.state
	m.state = next
	if m.onStateChange != nil && old != next {
		m.onStateChange(old, next)
	}
}
