package connection

import (
	"context"
	"net/netip"
	"sync"
)

// Addrs holds the addresses recorded during a connection attempt.
type Addrs struct {
	IPv4          netip.Addr
	IPv6LinkLocal netip.Addr
}

// signal is the per-attempt connection signal: one latch per address family
// plus a dead latch closed when the attempt is torn down.
type signal struct {
	ipv4 chan struct{}
	ipv6 chan struct{}
	dead chan struct{}

	once4    sync.Once
	once6    sync.Once
	onceDead sync.Once

	mu    sync.Mutex
	addrs Addrs
}

func newSignal() *signal {
	return &signal{
		ipv4: make(chan struct{}),
		ipv6: make(chan struct{}),
		dead: make(chan struct{}),
	}
}

// setIPv4 records addr and latches the IPv4 flag. Repeated calls only
// update the address.
func (s *signal) setIPv4(addr netip.Addr) {
	s.mu.Lock()
	s.addrs.IPv4 = addr
	s.mu.Unlock()
	s.once4.Do(func() { close(s.ipv4) })
}

func (s *signal) setIPv6(addr netip.Addr) {
	s.mu.Lock()
	s.addrs.IPv6LinkLocal = addr
	s.mu.Unlock()
	s.once6.Do(func() { close(s.ipv6) })
}

func (s *signal) destroy() {
	s.onceDead.Do(func() { close(s.dead) })
}

func (s *signal) hasIPv4() bool { return isClosed(s.ipv4) }
func (s *signal) hasIPv6() bool { return isClosed(s.ipv6) }

func (s *signal) snapshot() Addrs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addrs
}

// wait blocks until both flags are latched.
func (s *signal) wait(ctx context.Context) error {
	return waitAll(ctx, s.dead, s.ipv4, s.ipv6)
}

// waitAll blocks until every latch is closed. It returns ErrConnectionClosed
// if dead closes first and ctx.Err() if ctx ends first.
func waitAll(ctx context.Context, dead <-chan struct{}, latches ...<-chan struct{}) error {
	for _, l := range latches {
		select {
		case <-l:
		case <-dead:
			return ErrConnectionClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// callbackQueue runs functions in push order on a goroutine that exists
// only while work is pending. push never blocks.
type callbackQueue struct {
	mu      sync.Mutex
	pending []func()
	running bool
}

func (q *callbackQueue) push(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()
	go q.drain()
}

func (q *callbackQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		fn := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		fn()
	}
}
