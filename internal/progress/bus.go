package progress

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/iasik/orchestrator/internal/models"
)

// ErrBusClosed is returned by Publish once the bus has been closed.
var ErrBusClosed = errors.New("progress: bus closed")

// Bus is the in-process Progress Channel: per-project subscribe with
// at-least-once delivery to each subscriber's buffered queue.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(projectID string, handler Handler) (unsubscribe func())
	Close() error
}

type subscription struct {
	id           uint64
	projectID    string // empty means subscribe to every project
	handler      Handler
	events       chan Event
	done         chan struct{}
	unsubscribed atomic.Bool
}

// InProcessBus is the default Bus implementation, grounded on an
// in-process pub/sub pattern: one buffered channel and processing
// goroutine per subscription, a RWMutex-guarded registry, and
// panic-safe handler invocation.
type InProcessBus struct {
	mu            sync.RWMutex
	subscriptions map[uint64]*subscription
	nextID        atomic.Uint64
	closed        atomic.Bool
	logger        *slog.Logger
	bufferSize    int
	dropCount     atomic.Int64

	// lastPhase tracks the most recently published phase per project so
	// a resubscribing client can be handed the current phase string
	// without replaying historical events.
	lastPhase map[string]models.Phase
}

// BusOption configures an InProcessBus.
type BusOption func(*InProcessBus)

// WithBufferSize sets the per-subscriber event buffer depth.
func WithBufferSize(size int) BusOption {
	return func(b *InProcessBus) {
		if size > 0 {
			b.bufferSize = size
		}
	}
}

// WithLogger sets the bus's logger.
func WithLogger(logger *slog.Logger) BusOption {
	return func(b *InProcessBus) {
		b.logger = logger
	}
}

// NewBus creates an in-process Progress Channel bus.
func NewBus(opts ...BusOption) *InProcessBus {
	b := &InProcessBus{
		subscriptions: make(map[uint64]*subscription),
		bufferSize:    256,
		logger:        slog.Default(),
		lastPhase:     make(map[string]models.Phase),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers event to every subscriber whose projectID matches
// (or who subscribed to all projects). A full subscriber buffer drops
// the event for that subscriber rather than blocking the producer.
func (b *InProcessBus) Publish(ctx context.Context, event Event) error {
	if b.closed.Load() {
		return ErrBusClosed
	}

	if event.Type == EventProgressUpdate {
		if upd, ok := event.Payload.(ProgressUpdate); ok {
			b.mu.Lock()
			b.lastPhase[event.ProjectID] = upd.Phase
			b.mu.Unlock()
		}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscriptions {
		if sub.projectID != "" && sub.projectID != event.ProjectID {
			continue
		}
		select {
		case sub.events <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			b.logger.Warn("progress bus subscriber buffer full, dropping event",
				"project_id", event.ProjectID, "event_type", event.Type, "subscriber_id", sub.id)
			b.dropCount.Add(1)
		}
	}
	return nil
}

// Subscribe registers handler for events on projectID ("" subscribes to
// every project) and returns a function that unsubscribes it. No past
// events are replayed; a resubscribing client reads the project's
// current phase from CurrentPhase.
func (b *InProcessBus) Subscribe(projectID string, handler Handler) func() {
	if b.closed.Load() {
		return func() {}
	}

	id := b.nextID.Add(1)
	sub := &subscription{
		id:        id,
		projectID: projectID,
		handler:   handler,
		events:    make(chan Event, b.bufferSize),
		done:      make(chan struct{}),
	}

	b.mu.Lock()
	b.subscriptions[id] = sub
	b.mu.Unlock()

	go b.processEvents(sub)

	return func() { b.unsubscribe(id) }
}

// CurrentPhase returns the last-published phase for projectID, for a
// client that wants to resubscribe without replaying history.
func (b *InProcessBus) CurrentPhase(projectID string) (models.Phase, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	phase, ok := b.lastPhase[projectID]
	return phase, ok
}

func (b *InProcessBus) processEvents(sub *subscription) {
	for {
		select {
		case event, ok := <-sub.events:
			if !ok {
				return
			}
			b.safeCall(sub, event)
		case <-sub.done:
			for {
				select {
				case event, ok := <-sub.events:
					if !ok {
						return
					}
					b.safeCall(sub, event)
				default:
					return
				}
			}
		}
	}
}

func (b *InProcessBus) safeCall(sub *subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("progress handler panicked",
				"subscriber_id", sub.id, "event_type", event.Type, "panic", r)
		}
	}()
	sub.handler(event)
}

func (b *InProcessBus) unsubscribe(id uint64) {
	b.mu.Lock()
	sub, ok := b.subscriptions[id]
	if ok {
		delete(b.subscriptions, id)
	}
	b.mu.Unlock()

	if ok && sub.unsubscribed.CompareAndSwap(false, true) {
		close(sub.done)
		close(sub.events)
	}
}

// Close shuts down the bus. Events already buffered for a subscriber are
// still handed to its handler by the subscriber's goroutine; Close
// returns without waiting for that to finish.
func (b *InProcessBus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}

	b.mu.Lock()
	subs := make([]*subscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		subs = append(subs, sub)
	}
	b.subscriptions = make(map[uint64]*subscription)
	b.mu.Unlock()

	for _, sub := range subs {
		if sub.unsubscribed.CompareAndSwap(false, true) {
			close(sub.done)
			close(sub.events)
		}
	}
	return nil
}

// DroppedCount returns the number of events dropped so far due to a
// full subscriber buffer.
func (b *InProcessBus) DroppedCount() int64 {
	return b.dropCount.Load()
}
