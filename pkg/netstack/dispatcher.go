package netstack

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
)

// Dispatcher errors.
var (
	ErrDispatcherClosed = errors.New("event dispatcher closed")
	ErrUnknownEvent     = errors.New("unknown event kind")
	ErrNotRegistered    = errors.New("handler not registered")
)

// Registration identifies a handler installed with Register.
type Registration struct {
	kind EventKind
	id   uint64
}

// Kind returns the event kind the handler was registered for.
func (r Registration) Kind() EventKind { return r.kind }

type entry struct {
	id uint64
	h  Handler
}

// item is either an event or a barrier used by Sync.
type item struct {
	ev      Event
	barrier chan struct{}
}

// Dispatcher delivers events to registered handlers, one event at a time,
// on a dedicated goroutine. Post never blocks, so radios may publish events
// from inside a handler.
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[EventKind][]entry
	nextID   uint64
	queue    []item

	// deliver is held while the handlers of one event run.
	deliver sync.Mutex

	notify chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
	closed bool

	logger *slog.Logger
}

// NewDispatcher creates a dispatcher and starts its delivery goroutine.
// A nil logger disables debug output.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[EventKind][]entry),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		logger:   logger,
	}
	d.wg.Add(1)
	go d.loop()
	return d
}

// Register installs h for events of the given kind.
func (d *Dispatcher) Register(kind EventKind, h Handler) (Registration, error) {
	if !kind.Valid() {
		return Registration{}, ErrUnknownEvent
	}
	if h == nil {
		return Registration{}, errors.New("nil handler")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return Registration{}, ErrDispatcherClosed
	}
	d.nextID++
	d.handlers[kind] = append(d.handlers[kind], entry{id: d.nextID, h: h})
	return Registration{kind: kind, id: d.nextID}, nil
}

// Unregister removes the handler identified by reg and waits for any
// delivery that may still be running it. It must not be called from a
// handler.
func (d *Dispatcher) Unregister(reg Registration) error {
	d.mu.Lock()
	hs := d.handlers[reg.kind]
	i := slices.IndexFunc(hs, func(e entry) bool { return e.id == reg.id })
	if i < 0 {
		d.mu.Unlock()
		return ErrNotRegistered
	}
	d.handlers[reg.kind] = slices.Delete(hs, i, i+1)
	d.mu.Unlock()

	// A delivery that snapshotted the handler list before the removal holds
	// deliver until it finishes.
	d.deliver.Lock()
	d.deliver.Unlock()
	return nil
}

// Handlers returns the number of handlers registered for kind.
func (d *Dispatcher) Handlers(kind EventKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handlers[kind])
}

// Post queues ev for delivery.
func (d *Dispatcher) Post(ev Event) error {
	if !ev.Kind.Valid() {
		return ErrUnknownEvent
	}
	return d.enqueue(item{ev: ev})
}

// Sync blocks until every event posted before the call has been delivered.
func (d *Dispatcher) Sync(ctx context.Context) error {
	barrier := make(chan struct{})
	if err := d.enqueue(item{barrier: barrier}); err != nil {
		return err
	}
	select {
	case <-barrier:
		return nil
	case <-d.done:
		return ErrDispatcherClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops delivery. Queued events are dropped.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.queue = nil
	d.mu.Unlock()

	close(d.done)
	d.wg.Wait()
}

func (d *Dispatcher) enqueue(it item) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.queue = append(d.queue, it)
	d.mu.Unlock()

	select {
	case d.notify <- struct{}{}:
	default:
		// Wakeup already pending
	}
	return nil
}

func (d *Dispatcher) pop() (item, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return item{}, false
	}
	it := d.queue[0]
	d.queue[0] = item{}
	d.queue = d.queue[1:]
	return it, true
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.done:
			return
		case <-d.notify:
		}

		for {
			select {
			case <-d.done:
				return
			default:
			}
			it, ok := d.pop()
			if !ok {
				break
			}
			if it.barrier != nil {
				close(it.barrier)
				continue
			}
			d.dispatch(it.ev)
		}
	}
}

func (d *Dispatcher) dispatch(ev Event) {
	d.deliver.Lock()
	defer d.deliver.Unlock()

	d.mu.Lock()
	hs := slices.Clone(d.handlers[ev.Kind])
	d.mu.Unlock()

	if d.logger != nil {
		d.logger.Debug("netstack event", "event", ev.String(), "handlers", len(hs))
	}
	for _, e := range hs {
		e.h(ev)
	}
}
