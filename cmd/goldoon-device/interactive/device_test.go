package interactive

import (
	"bytes"
	"context"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldoon/goldoon-go/pkg/connection"
	"github.com/goldoon/goldoon-go/pkg/netstack"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeStation struct {
	mu          sync.Mutex
	state       connection.State
	addrs       connection.Addrs
	connects    int
	disconnects int
}

func (f *fakeStation) State() connection.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeStation) SessionID() string { return "" }

func (f *fakeStation) Addrs() connection.Addrs {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addrs
}

func (f *fakeStation) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	f.state = connection.StateConnected
	f.addrs = connection.Addrs{
		IPv4:          netip.MustParseAddr("192.0.2.5"),
		IPv6LinkLocal: netip.MustParseAddr("fe80::1"),
	}
	return nil
}

func (f *fakeStation) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == connection.StateIdle {
		return connection.ErrNotConnected
	}
	f.disconnects++
	f.state = connection.StateIdle
	f.addrs = connection.Addrs{}
	return nil
}

func newTestDevice(cfg Config) (*Device, *syncBuffer) {
	out := &syncBuffer{}
	return &Device{cfg: cfg, out: out}, out
}

func TestExecConnectDisconnect(t *testing.T) {
	st := &fakeStation{}
	d, out := newTestDevice(Config{Station: st})
	ctx := context.Background()

	require.True(t, d.Exec(ctx, "connect"))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Connected (192.0.2.5, fe80::1)")
	}, time.Second, 5*time.Millisecond)

	require.True(t, d.Exec(ctx, "status"))
	assert.Contains(t, out.String(), "Connection: CONNECTED")

	require.True(t, d.Exec(ctx, "addrs"))
	assert.Contains(t, out.String(), "IPv4:           192.0.2.5")

	require.True(t, d.Exec(ctx, "disconnect"))
	assert.Contains(t, out.String(), "Disconnected")

	require.True(t, d.Exec(ctx, "disconnect"))
	assert.Contains(t, out.String(), "Error: ")
	assert.Equal(t, 1, st.disconnects)
}

func TestExecQuitAndUnknown(t *testing.T) {
	d, out := newTestDevice(Config{Station: &fakeStation{}})
	ctx := context.Background()

	assert.True(t, d.Exec(ctx, "   "))
	assert.True(t, d.Exec(ctx, "frobnicate"))
	assert.Contains(t, out.String(), "Unknown command: frobnicate")
	assert.False(t, d.Exec(ctx, "quit"))
	assert.False(t, d.Exec(ctx, "Q"))
}

func TestExecSimCommands(t *testing.T) {
	t.Run("without sim", func(t *testing.T) {
		d, out := newTestDevice(Config{Station: &fakeStation{}})
		d.Exec(context.Background(), "drop")
		assert.Contains(t, out.String(), "drop needs the sim radio")
	})

	t.Run("inject and drop", func(t *testing.T) {
		disp := netstack.NewDispatcher(nil)
		t.Cleanup(disp.Close)
		sim := netstack.NewSimRadio(disp, netstack.SimConfig{})

		events := make(chan netstack.Event, 4)
		for _, k := range netstack.Kinds {
			_, err := disp.Register(k, func(ev netstack.Event) { events <- ev })
			require.NoError(t, err)
		}

		d, out := newTestDevice(Config{Station: &fakeStation{}, Sim: sim})
		ctx := context.Background()

		d.Exec(ctx, "inject got_ip4 192.0.2.5")
		d.Exec(ctx, "drop beacon timeout")
		require.NoError(t, disp.Sync(ctx))

		require.Len(t, events, 2)
		ev := <-events
		assert.Equal(t, netstack.GotIPv4, ev.Kind)
		assert.Equal(t, netip.MustParseAddr("192.0.2.5"), ev.Addr)
		ev = <-events
		assert.Equal(t, netstack.StationDisconnected, ev.Kind)
		assert.Equal(t, "beacon timeout", ev.Reason)
		assert.NotContains(t, out.String(), "Error")
	})
}

func TestParseEvent(t *testing.T) {
	ev, err := parseEvent("STA_CONNECTED", nil)
	require.NoError(t, err)
	assert.Equal(t, netstack.StationConnected, ev.Kind)

	ev, err = parseEvent("got_ip6_linklocal", []string{"fe80::1"})
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("fe80::1"), ev.Addr)

	_, err = parseEvent("got_ip4", nil)
	assert.Error(t, err)

	_, err = parseEvent("got_ip4", []string{"not-an-ip"})
	assert.Error(t, err)

	_, err = parseEvent("reboot", nil)
	assert.Error(t, err)
}
