package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	coapNet "github.com/plgd-dev/go-coap/v2/net"
	"github.com/plgd-dev/go-coap/v2/mux"
	"github.com/plgd-dev/go-coap/v2/udp"

	"github.com/goldoon/goldoon-go/pkg/connection"
	"github.com/goldoon/goldoon-go/pkg/log"
	"github.com/goldoon/goldoon-go/pkg/resource"
)

// Well-known ports.
const (
	DefaultPort   = 5683
	AlternatePort = 1378
)

// ErrServerRunning is returned by Start on a running server.
var ErrServerRunning = errors.New("server already running")

// Waiter blocks until the station has network connectivity.
// *connection.Manager implements it.
type Waiter interface {
	WaitConnected(ctx context.Context) error
}

// ServerConfig configures a CoAP server.
type ServerConfig struct {
	// Address to listen on (e.g., ":5683" or "127.0.0.1:0").
	Address string

	// Resources selects the resources to serve (default: resource.SetAbout).
	Resources resource.Set

	// Elahe is the elahe resource instance. Nil creates one.
	Elahe *resource.Elahe

	// RebindBackoff paces re-bind attempts in Run.
	RebindBackoff connection.BackoffConfig

	// Logger is the optional logger for operational messages.
	Logger *slog.Logger

	// ProtocolLogger receives an ExchangeEvent per request (optional).
	ProtocolLogger log.Logger
}

// DefaultServerConfig returns a configuration serving About on the default
// port.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:       fmt.Sprintf(":%d", DefaultPort),
		Resources:     resource.SetAbout,
		RebindBackoff: connection.DefaultBackoffConfig(),
	}
}

// Server is a CoAP server on UDP.
type Server struct {
	config         ServerConfig
	router         *mux.Router
	logger         *slog.Logger
	protocolLogger log.Logger

	mu       sync.Mutex
	coap     *udp.Server
	listener *coapNet.UDPConn
	done     chan error
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	running  atomic.Bool
	requests atomic.Uint64
}

// NewServer creates a server and registers its resources.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.Resources == 0 {
		config.Resources = resource.SetAbout
	}

	s := &Server{
		config:         config,
		router:         mux.NewRouter(),
		logger:         config.Logger,
		protocolLogger: log.OrNoop(config.ProtocolLogger),
	}
	s.router.Use(s.logExchange)
	if err := resource.Register(s.router, config.Resources, config.Elahe); err != nil {
		return nil, err
	}
	return s, nil
}

// Start binds the UDP socket and serves in the background until Stop is
// called or ctx ends.
func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerRunning
	}

	l, err := coapNet.NewListenUDP("udp", s.config.Address)
	if err != nil {
		s.running.Store(false)
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}

	srv := udp.NewServer(udp.WithMux(s.router))
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)

	s.mu.Lock()
	s.coap = srv
	s.listener = l
	s.done = done
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		done <- srv.Serve(l)
	}()
	go func() {
		defer s.wg.Done()
		<-ctx.Done()
		srv.Stop()
	}()

	s.logState("", "LISTENING", l.LocalAddr().String())
	if s.logger != nil {
		s.logger.Info("coap server listening",
			"addr", l.LocalAddr().String(),
			"resources", s.config.Resources.String())
	}
	return nil
}

// Stop stops serving and closes the socket. It is a no-op on a stopped
// server.
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	s.mu.Lock()
	cancel := s.cancel
	l := s.listener
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	_ = l.Close()

	s.mu.Lock()
	s.coap = nil
	s.listener = nil
	s.mu.Unlock()

	s.logState("LISTENING", "STOPPED", "stop")
	return nil
}

// Run waits for w (if non-nil) to report connectivity, then serves until
// ctx ends. Bind and serve failures are retried after a backoff delay.
// It returns nil once ctx ends, or ctx.Err() if ctx ends while waiting.
func (s *Server) Run(ctx context.Context, w Waiter) error {
	if w != nil {
		if err := w.WaitConnected(ctx); err != nil {
			return err
		}
	}

	backoff := connection.NewBackoffWithConfig(s.config.RebindBackoff)
	for {
		err := s.Start(ctx)
		if err == nil {
			backoff.Reset()
			err = s.serveUntil(ctx)
			if err == nil {
				return nil
			}
		}

		s.logState("", "REBINDING", err.Error())
		if s.logger != nil {
			s.logger.Warn("coap server failed, re-binding", "error", err, "attempt", backoff.Attempts()+1)
		}
		if err := backoff.Wait(ctx); err != nil {
			return nil
		}
	}
}

// serveUntil blocks until ctx ends (nil) or the serve loop exits on its own
// (the serve error).
func (s *Server) serveUntil(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-done:
		_ = s.Stop()
		if err == nil {
			err = errors.New("serve loop exited")
		}
		return err
	}
}

// Addr returns the bound address, or nil when stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.LocalAddr()
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	return s.running.Load()
}

// RequestCount returns the number of requests handled.
func (s *Server) RequestCount() uint64 {
	return s.requests.Load()
}

func (s *Server) logState(oldState, newState, reason string) {
	s.protocolLogger.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerCoAP,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityServer,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}
