// Package dispatch delivers batches of catalog files with pacing and failure accounting.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vmunix/cinedex/internal/events"
)

// DefaultPace is the delay between successive deliveries.
const DefaultPace = time.Second

// DeliverFunc delivers one file.
type DeliverFunc func(ctx context.Context, locator string) error

// Summary counts the outcome of a batch.
type Summary struct {
	Sent   int
	Failed int
}

// Run delivers locators in order, waiting pace between successive calls. A failed item
// is counted and logged and the batch continues; nothing is retried. Canceling ctx
// does not stop the loop, but the waits end early so remaining items fail fast.
func Run(ctx context.Context, locators []string, deliver DeliverFunc, pace time.Duration) Summary {
	return run(ctx, locators, deliver, pace, slog.Default())
}

func run(ctx context.Context, locators []string, deliver DeliverFunc, pace time.Duration, logger *slog.Logger) Summary {
	var sum Summary
	for i, loc := range locators {
		if i > 0 {
			wait(ctx, pace)
		}
		if err := deliver(ctx, loc); err != nil {
			sum.Failed++
			logger.Warn("delivery failed", "locator", loc, "index", i, "error", err)
			continue
		}
		sum.Sent++
	}
	return sum
}

func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Dispatcher runs batches with a fixed pace and reports them on the event bus.
type Dispatcher struct {
	pace   time.Duration
	bus    events.Publisher
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher. A nil bus disables events; a negative pace is
// treated as zero.
func NewDispatcher(pace time.Duration, bus events.Publisher, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		pace:   max(pace, 0),
		bus:    bus,
		logger: logger.With("component", "dispatch"),
	}
}

// Dispatch delivers locators to chatID and returns the batch outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, chatID int64, locators []string, deliver DeliverFunc) Summary {
	batch := uuid.NewString()
	logger := d.logger.With("batch", batch, "chat_id", chatID)
	start := time.Now()

	logger.Info("dispatch started", "items", len(locators))
	d.publish(ctx, &events.DispatchStarted{
		BaseEvent: events.NewBaseEvent(events.EventDispatchStarted, events.EntityDispatch, batch),
		ChatID:    chatID,
		Items:     len(locators),
	})

	sum := run(ctx, locators, deliver, d.pace, logger)
	elapsed := time.Since(start)

	logger.Info("dispatch completed", "sent", sum.Sent, "failed", sum.Failed, "duration", elapsed)
	d.publish(context.WithoutCancel(ctx), &events.DispatchCompleted{
		BaseEvent: events.NewBaseEvent(events.EventDispatchCompleted, events.EntityDispatch, batch),
		ChatID:    chatID,
		Sent:      sum.Sent,
		Failed:    sum.Failed,
		Duration:  elapsed,
	})
	return sum
}

func (d *Dispatcher) publish(ctx context.Context, e events.Event) {
	if d.bus == nil {
		return
	}
	if err := d.bus.Publish(ctx, e); err != nil {
		d.logger.Warn("publish event failed", "type", e.EventType(), "error", err)
	}
}
