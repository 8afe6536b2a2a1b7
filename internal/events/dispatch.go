package events

import "time"

// Dispatch event types.
const (
	EventDispatchStarted   = "dispatch.started"
	EventDispatchCompleted = "dispatch.completed"
)

// DispatchStarted is emitted when a batch delivery begins. EntityID is the batch ID.
type DispatchStarted struct {
	BaseEvent
	ChatID int64 `json:"chat_id"`
	Items  int   `json:"items"`
}

// DispatchCompleted is emitted once every item of a batch has been attempted.
type DispatchCompleted struct {
	BaseEvent
	ChatID   int64         `json:"chat_id"`
	Sent     int           `json:"sent"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}
