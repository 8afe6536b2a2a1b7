package events

import (
	"encoding/json"
	"fmt"
)

// EventFactory creates a new zero-value event of a specific type.
type EventFactory func() Event

// Registry maps event types to factories so persisted payloads can be decoded.
type Registry struct {
	factories map[string]EventFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]EventFactory)}
}

// Register adds an event type.
func (r *Registry) Register(eventType string, factory EventFactory) {
	r.factories[eventType] = factory
}

// Unmarshal decodes a raw event into its concrete type.
func (r *Registry) Unmarshal(raw RawEvent) (Event, error) {
	factory, ok := r.factories[raw.EventType]
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", raw.EventType)
	}
	event := factory()
	if err := json.Unmarshal([]byte(raw.Payload), event); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", raw.EventType, err)
	}
	return event, nil
}

// DefaultRegistry returns a registry with every catalog and dispatch event registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(EventFileIndexed, func() Event { return &FileIndexed{} })
	r.Register(EventIndexFailed, func() Event { return &IndexFailed{} })
	r.Register(EventFeedScanned, func() Event { return &FeedScanned{} })
	r.Register(EventDispatchStarted, func() Event { return &DispatchStarted{} })
	r.Register(EventDispatchCompleted, func() Event { return &DispatchCompleted{} })
	return r
}
