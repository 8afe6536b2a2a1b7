package events

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// Publisher is the write side of the bus.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// subscription receives events whose type is in types, or every event when types is empty.
type subscription struct {
	ch    chan Event
	types []string
}

func (s subscription) wants(e Event) bool {
	return len(s.types) == 0 || slices.Contains(s.types, e.EventType())
}

// Bus fans events out to subscribers and records them in an optional EventLog.
// Delivery never blocks the publisher: a full subscriber misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	log    *EventLog
	logger *slog.Logger
	closed bool
}

// NewBus creates an event bus. A nil log disables persistence.
func NewBus(log *EventLog, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		log:    log,
		logger: logger.With("component", "events"),
	}
}

// Publish persists e and hands it to every interested subscriber.
// Persistence failures are logged; the event is still delivered.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil
	}
	subs := slices.Clone(b.subs)
	b.mu.RUnlock()

	if b.log != nil {
		if _, err := b.log.Append(ctx, e); err != nil {
			b.logger.Error("persist event failed", "type", e.EventType(), "error", err)
		}
	}

	for _, s := range subs {
		if !s.wants(e) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			b.logger.Warn("subscriber channel full, dropping event",
				"type", e.EventType(),
				"entity_type", e.EntityType(),
				"entity_id", e.EntityID())
		}
	}
	return nil
}

// Subscribe returns a channel receiving events of the given types.
func (b *Bus) Subscribe(bufferSize int, eventTypes ...string) <-chan Event {
	return b.add(subscription{ch: make(chan Event, bufferSize), types: eventTypes})
}

// SubscribeAll returns a channel receiving every event.
func (b *Bus) SubscribeAll(bufferSize int) <-chan Event {
	return b.add(subscription{ch: make(chan Event, bufferSize)})
}

func (b *Bus) add(s subscription) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		return s.ch
	}
	b.subs = append(b.subs, s)
	return s.ch
}

// Unsubscribe removes and closes a subscription channel.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.ch == ch {
			close(s.ch)
			b.subs = slices.Delete(b.subs, i, i+1)
			return
		}
	}
}

// Close shuts down the bus and closes all subscriber channels.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, s := range b.subs {
		close(s.ch)
	}
	b.subs = nil
	return nil
}
