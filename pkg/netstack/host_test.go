package netstack

import (
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInterfaces struct {
	mu  sync.Mutex
	st  InterfaceState
	err error
}

func (f *fakeInterfaces) Interface(string) (InterfaceState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st, f.err
}

func (f *fakeInterfaces) set(st InterfaceState, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st, f.err = st, err
}

func TestHostRadio(t *testing.T) {
	d := NewDispatcher(nil)
	defer d.Close()
	events := collect(t, d)

	src := &fakeInterfaces{st: InterfaceState{Up: true}}
	h, err := NewHostRadio(d, HostConfig{
		Interface:    "wlan0",
		PollInterval: time.Hour,
		Source:       src,
	})
	require.NoError(t, err)

	require.NoError(t, h.Init(StationConfig{SSID: "TestNet"}))
	require.NoError(t, h.Start())
	defer func() {
		_ = h.Stop()
		_ = h.Deinit()
	}()

	// Nothing is reported before association is requested.
	h.poll()
	require.NoError(t, d.Sync(syncCtx(t)))
	assert.Empty(t, events)

	require.NoError(t, h.Connect())
	h.poll()
	assert.Equal(t, StationConnected, next(t, events).Kind)

	v4 := netip.MustParseAddr("192.0.2.5")
	ll := netip.MustParseAddr("fe80::1")
	src.set(InterfaceState{Up: true, Addrs: []netip.Addr{netip.MustParseAddr("127.0.0.1"), v4, ll}}, nil)
	h.poll()
	ev := next(t, events)
	assert.Equal(t, GotIPv4, ev.Kind)
	assert.Equal(t, v4, ev.Addr)

	// Link-local is only reported once requested.
	require.NoError(t, h.CreateIPv6LinkLocal())
	h.poll()
	ev = next(t, events)
	assert.Equal(t, GotIPv6LinkLocal, ev.Kind)
	assert.Equal(t, ll, ev.Addr)

	// Unchanged state publishes nothing.
	h.poll()
	require.NoError(t, d.Sync(syncCtx(t)))
	assert.Empty(t, events)

	src.set(InterfaceState{}, errors.New("no such device"))
	h.poll()
	ev = next(t, events)
	assert.Equal(t, StationDisconnected, ev.Kind)
	assert.Equal(t, "no such device", ev.Reason)
}

func TestHostRadioRequiresInterface(t *testing.T) {
	d := NewDispatcher(nil)
	defer d.Close()

	_, err := NewHostRadio(d, HostConfig{})
	assert.Error(t, err)

	src := &fakeInterfaces{err: errors.New("no such device")}
	h, err := NewHostRadio(d, HostConfig{Interface: "wlan9", Source: src})
	require.NoError(t, err)
	assert.Error(t, h.Init(StationConfig{}))
}

func TestHostRadioIgnoresAutoconfigIPv4(t *testing.T) {
	d := NewDispatcher(nil)
	defer d.Close()
	events := collect(t, d)

	autoconf := netip.MustParseAddr("169.254.10.20")
	src := &fakeInterfaces{st: InterfaceState{Up: true, Addrs: []netip.Addr{autoconf}}}
	h, err := NewHostRadio(d, HostConfig{
		Interface:    "wlan0",
		PollInterval: time.Hour,
		Source:       src,
	})
	require.NoError(t, err)

	require.NoError(t, h.Init(StationConfig{SSID: "TestNet"}))
	require.NoError(t, h.Start())
	defer func() {
		_ = h.Stop()
		_ = h.Deinit()
	}()

	require.NoError(t, h.Connect())
	h.poll()
	assert.Equal(t, StationConnected, next(t, events).Kind)

	// No lease yet: the autoconfiguration address is not reported.
	h.poll()
	require.NoError(t, d.Sync(syncCtx(t)))
	assert.Empty(t, events)

	v4 := netip.MustParseAddr("192.0.2.5")
	src.set(InterfaceState{Up: true, Addrs: []netip.Addr{autoconf, v4}}, nil)
	h.poll()
	ev := next(t, events)
	assert.Equal(t, GotIPv4, ev.Kind)
	assert.Equal(t, v4, ev.Addr)
}

func TestIsStationIPv4(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"192.0.2.5", true},
		{"10.0.0.7", true},
		{"169.254.10.20", false},
		{"127.0.0.1", false},
		{"0.0.0.0", false},
		{"fe80::1", false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, isStationIPv4(netip.MustParseAddr(tt.addr)))
		})
	}
}
