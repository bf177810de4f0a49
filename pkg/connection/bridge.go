package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/goldoon/goldoon-go/pkg/log"
	"github.com/goldoon/goldoon-go/pkg/netstack"
)

// bridge translates network stack events into signal updates and radio
// commands for one connection attempt.
type bridge struct {
	m     *Manager
	s     *session
	radio netstack.Radio

	regs []netstack.Registration

	// stop ends the reconnect retry loop.
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	retrying atomic.Bool
}

func newBridge(m *Manager, s *session) *bridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &bridge{m: m, s: s, radio: m.radio, ctx: ctx, cancel: cancel}
}

// register installs the four handlers. On failure the handlers installed so
// far are removed again.
func (b *bridge) register(src netstack.EventSource) error {
	handlers := []struct {
		kind netstack.EventKind
		h    netstack.Handler
	}{
		{netstack.StationDisconnected, b.onStationDisconnected},
		{netstack.StationConnected, b.onStationConnected},
		{netstack.GotIPv4, b.onGotIPv4},
		{netstack.GotIPv6LinkLocal, b.onGotIPv6LinkLocal},
	}

	for _, h := range handlers {
		reg, err := src.Register(h.kind, h.h)
		if err != nil {
			_ = b.unregister(src)
			return fmt.Errorf("register %s handler: %w", h.kind, err)
		}
		b.regs = append(b.regs, reg)
	}
	return nil
}

// unregister removes all handlers and stops the retry loop. No handler runs
// once it returns.
func (b *bridge) unregister(src netstack.EventSource) error {
	var errs []error
	for _, reg := range b.regs {
		if err := src.Unregister(reg); err != nil {
			errs = append(errs, fmt.Errorf("unregister %s handler: %w", reg.Kind(), err))
		}
	}
	b.regs = nil
	b.cancel()
	b.wg.Wait()
	return errors.Join(errs...)
}

func (b *bridge) onStationDisconnected(ev netstack.Event) {
	b.m.linkLost(b.s, ev.Reason)
	b.m.record(b.s, log.Event{
		Layer:    log.LayerRadio,
		Category: log.CategoryNet,
		Net:      log.NetEventFrom(ev, "reconnect"),
	})

	// Exactly one request per event; retries only follow a refused request.
	err := b.radio.Connect()
	if err == nil {
		return
	}
	b.m.debugLog("reconnect request refused", "session", b.s.id, "error", err)
	b.m.recordError(b.s, log.LayerRadio, err, "reconnect")

	if b.retrying.CompareAndSwap(false, true) {
		b.wg.Add(1)
		go b.retryLoop()
	}
}

func (b *bridge) retryLoop() {
	defer b.wg.Done()
	defer b.retrying.Store(false)

	for {
		if err := b.m.backoff.Wait(b.ctx); err != nil {
			return
		}
		err := b.radio.Connect()
		if err == nil {
			b.m.debugLog("reconnect request accepted", "session", b.s.id,
				"attempts", b.m.backoff.Attempts())
			return
		}
		b.m.debugLog("reconnect request refused", "session", b.s.id,
			"attempts", b.m.backoff.Attempts(), "error", err)
	}
}

func (b *bridge) onStationConnected(ev netstack.Event) {
	b.m.record(b.s, log.Event{
		Layer:    log.LayerRadio,
		Category: log.CategoryNet,
		Net:      log.NetEventFrom(ev, "create_ip6_linklocal"),
	})
	if err := b.radio.CreateIPv6LinkLocal(); err != nil {
		b.m.debugLog("link-local request failed", "session", b.s.id, "error", err)
		b.m.recordError(b.s, log.LayerRadio, err, "create_ip6_linklocal")
	}
}

func (b *bridge) onGotIPv4(ev netstack.Event) {
	b.m.record(b.s, log.Event{
		Layer:    log.LayerRadio,
		Category: log.CategoryNet,
		Net:      log.NetEventFrom(ev, "latch_ipv4"),
	})
	b.s.sig.setIPv4(ev.Addr)
	b.m.backoff.Reset()
	b.m.linkRestored(b.s)
}

func (b *bridge) onGotIPv6LinkLocal(ev netstack.Event) {
	b.m.record(b.s, log.Event{
		Layer:    log.LayerRadio,
		Category: log.CategoryNet,
		Net:      log.NetEventFrom(ev, "latch_ipv6"),
	})
	b.s.sig.setIPv6(ev.Addr)
}
