package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/plgd-dev/go-coap/v2/message"
	"github.com/plgd-dev/go-coap/v2/message/codes"
	"github.com/plgd-dev/go-coap/v2/udp"
	"github.com/plgd-dev/go-coap/v2/udp/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldoon/goldoon-go/pkg/connection"
	"github.com/goldoon/goldoon-go/pkg/log"
	"github.com/goldoon/goldoon-go/pkg/resource"
)

type recordingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *recordingLogger) Log(ev log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingLogger) exchanges() []*log.ExchangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*log.ExchangeEvent
	for _, ev := range r.events {
		if ev.Exchange != nil {
			out = append(out, ev.Exchange)
		}
	}
	return out
}

func startServer(t *testing.T, set resource.Set) (*Server, *recordingLogger) {
	t.Helper()
	plog := &recordingLogger{}
	s, err := NewServer(ServerConfig{
		Address:        "127.0.0.1:0",
		Resources:      set,
		ProtocolLogger: plog,
	})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop() })
	return s, plog
}

func dial(t *testing.T, addr net.Addr) *client.ClientConn {
	t.Helper()
	cc, err := udp.Dial(addr.String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })
	return cc
}

func reqCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestServerAbout(t *testing.T) {
	s, plog := startServer(t, resource.SetAbout)
	cc := dial(t, s.Addr())

	resp, err := cc.Get(reqCtx(t), resource.AboutPath)
	require.NoError(t, err)
	assert.Equal(t, codes.Content, resp.Code())

	cf, err := resp.ContentFormat()
	require.NoError(t, err)
	assert.Equal(t, message.TextPlain, cf)

	body, err := resp.ReadBody()
	require.NoError(t, err)
	assert.Equal(t, resource.AboutText, string(body))

	require.Eventually(t, func() bool { return len(plog.exchanges()) == 1 }, time.Second, 5*time.Millisecond)
	ex := plog.exchanges()[0]
	assert.Equal(t, "GET", ex.Method)
	assert.Equal(t, resource.AboutPath, ex.Path)
	assert.Equal(t, codes.Content.String(), ex.Code)
	assert.Equal(t, int(message.TextPlain), ex.ContentFormat)
	assert.Equal(t, len(resource.AboutText), ex.Size)
	assert.Equal(t, uint64(1), s.RequestCount())
}

func TestServerMethodNotAllowed(t *testing.T) {
	s, _ := startServer(t, resource.SetAbout)
	cc := dial(t, s.Addr())

	resp, err := cc.Post(reqCtx(t), resource.AboutPath, message.TextPlain, bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	assert.Equal(t, codes.MethodNotAllowed, resp.Code())
}

func TestServerElahe(t *testing.T) {
	s, _ := startServer(t, resource.SetElahe)
	cc := dial(t, s.Addr())

	var prev int64
	for i := 0; i < 3; i++ {
		resp, err := cc.Get(reqCtx(t), resource.ElahePath)
		require.NoError(t, err)
		require.Equal(t, codes.Content, resp.Code())

		cf, err := resp.ContentFormat()
		require.NoError(t, err)
		assert.Equal(t, message.AppJSON, cf)

		body, err := resp.ReadBody()
		require.NoError(t, err)
		var rd resource.Reading
		require.NoError(t, json.Unmarshal(body, &rd))
		assert.Equal(t, resource.DefaultElaheName, rd.Name)
		assert.Greater(t, rd.Timestamp, prev)
		prev = rd.Timestamp
	}

	// About is not served by the elahe-only build.
	resp, err := cc.Get(reqCtx(t), resource.AboutPath)
	require.NoError(t, err)
	assert.Equal(t, codes.NotFound, resp.Code())
}

func TestServerStartStop(t *testing.T) {
	s, err := NewServer(ServerConfig{Address: "127.0.0.1:0"})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.NotNil(t, s.Addr())
	assert.ErrorIs(t, s.Start(context.Background()), ErrServerRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.Nil(t, s.Addr())
	require.NoError(t, s.Stop())
}

func TestServerDefaults(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.Equal(t, ":5683", cfg.Address)
	assert.Equal(t, resource.SetAbout, cfg.Resources)

	s, err := NewServer(ServerConfig{})
	require.NoError(t, err)
	assert.Equal(t, ":5683", s.config.Address)
}

// gate is a Waiter released by closing its channel.
type gate chan struct{}

func (g gate) WaitConnected(ctx context.Context) error {
	select {
	case <-g:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestServerRunWaitsForConnectivity(t *testing.T) {
	s, err := NewServer(ServerConfig{Address: "127.0.0.1:0"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	g := make(gate)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, g) }()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, s.IsRunning(), "must not bind before connectivity")

	close(g)
	require.Eventually(t, s.IsRunning, 2*time.Second, 5*time.Millisecond)

	cc := dial(t, s.Addr())
	resp, err := cc.Get(reqCtx(t), resource.AboutPath)
	require.NoError(t, err)
	assert.Equal(t, codes.Content, resp.Code())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, s.IsRunning())
}

func TestServerRunCancelledWhileWaiting(t *testing.T) {
	s, err := NewServer(ServerConfig{Address: "127.0.0.1:0"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Run(ctx, make(gate)), context.DeadlineExceeded)
}

func TestServerRunRebinds(t *testing.T) {
	blocker, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := blocker.LocalAddr().String()

	plog := &recordingLogger{}
	s, err := NewServer(ServerConfig{
		Address:        addr,
		RebindBackoff:  connection.BackoffConfig{Initial: 10 * time.Millisecond, Max: 20 * time.Millisecond, Jitter: -1},
		ProtocolLogger: plog,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, nil) }()

	time.Sleep(50 * time.Millisecond)
	assert.False(t, s.IsRunning(), "port is taken")

	require.NoError(t, blocker.Close())
	require.Eventually(t, s.IsRunning, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done

	var states []string
	plog.mu.Lock()
	for _, ev := range plog.events {
		if ev.StateChange != nil {
			states = append(states, ev.StateChange.NewState)
		}
	}
	plog.mu.Unlock()
	assert.Contains(t, states, "REBINDING")
	assert.Contains(t, states, "LISTENING")
	assert.Equal(t, "STOPPED", states[len(states)-1])
}
