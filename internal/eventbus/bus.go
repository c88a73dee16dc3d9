// Package eventbus provides an in-process pub/sub event bus for domain events.
// Handlers publish events after a successful evaluation; subscribers process
// them asynchronously, one event at a time.
package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/matthewbaird/strata/internal/event"
)

// Handler processes a domain event. Implementations must be safe for
// concurrent calls from different goroutines.
type Handler interface {
	HandleEvent(ctx context.Context, evt event.DomainEvent) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt event.DomainEvent) error

func (f HandlerFunc) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	return f(ctx, evt)
}

// Bus is a simple in-process event bus. Events are published to a buffered
// channel and dispatched to all subscribers in a single consumer goroutine,
// which serialises writes from consumers such as the SQLite-backed store.
type Bus struct {
	log         *slog.Logger
	mu          sync.RWMutex
	subscribers []namedHandler
	events      chan event.DomainEvent
	quit        chan struct{}
	done        chan struct{}
	started     atomic.Bool
	stopOnce    sync.Once
	dropped     atomic.Int64
}

type namedHandler struct {
	name    string
	handler Handler
}

// New creates a new Bus with the given channel buffer size.
func New(bufSize int, logger *slog.Logger) *Bus {
	if bufSize < 1 {
		bufSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		log:    logger.With(slog.String("component", "eventbus")),
		events: make(chan event.DomainEvent, bufSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Subscribe registers a named handler. Must be called before Start.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, namedHandler{name: name, handler: h})
}

// Publish sends an event to the bus. Non-blocking: if the buffer is full or
// the bus is stopped the event is dropped and a warning is logged.
func (b *Bus) Publish(_ context.Context, evt event.DomainEvent) {
	select {
	case <-b.quit:
		b.drop(evt, "stopped")
		return
	default:
	}
	select {
	case b.events <- evt:
	default:
		b.drop(evt, "buffer full")
	}
}

func (b *Bus) drop(evt event.DomainEvent, reason string) {
	b.dropped.Add(1)
	b.log.Warn("dropping event",
		slog.String("reason", reason),
		slog.String("event_type", evt.EventType),
		slog.String("event_id", evt.ID))
}

// Dropped returns the number of events dropped since the bus was created.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }

// Start begins the consumer goroutine. It processes events until the
// context is cancelled or Stop is called, then drains what is buffered.
func (b *Bus) Start(ctx context.Context) {
	if !b.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(b.done)
		for {
			select {
			case evt := <-b.events:
				b.dispatch(ctx, evt)
			case <-ctx.Done():
				b.drain(context.WithoutCancel(ctx))
				return
			case <-b.quit:
				b.drain(ctx)
				return
			}
		}
	}()
}

func (b *Bus) drain(ctx context.Context) {
	for {
		select {
		case evt := <-b.events:
			b.dispatch(ctx, evt)
		default:
			return
		}
	}
}

// Stop refuses further events and waits for the consumer goroutine to finish.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() { close(b.quit) })
	if b.started.Load() {
		<-b.done
	}
}

func (b *Bus) dispatch(ctx context.Context, evt event.DomainEvent) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, s := range subs {
		if err := s.handler.HandleEvent(ctx, evt); err != nil {
			b.log.Error("handler failed",
				slog.String("handler", s.name),
				slog.String("event_type", evt.EventType),
				slog.String("error", err.Error()))
		}
	}
}
