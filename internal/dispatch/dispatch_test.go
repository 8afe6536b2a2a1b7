package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/cinedex/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorder struct {
	calls []string
	fail  map[string]bool
}

func (r *recorder) deliver(_ context.Context, loc string) error {
	r.calls = append(r.calls, loc)
	if r.fail[loc] {
		return errors.New("rate limited")
	}
	return nil
}

func TestRun_FailureDoesNotAbort(t *testing.T) {
	rec := &recorder{fail: map[string]bool{"b": true}}

	sum := Run(context.Background(), []string{"a", "b", "c"}, rec.deliver, 0)

	assert.Equal(t, Summary{Sent: 2, Failed: 1}, sum)
	assert.Equal(t, []string{"a", "b", "c"}, rec.calls)
}

func TestRun_Empty(t *testing.T) {
	rec := &recorder{}
	assert.Equal(t, Summary{}, Run(context.Background(), nil, rec.deliver, time.Hour))
	assert.Empty(t, rec.calls)
}

func TestRun_PacesBetweenCalls(t *testing.T) {
	var stamps []time.Time
	deliver := func(context.Context, string) error {
		stamps = append(stamps, time.Now())
		return nil
	}

	pace := 20 * time.Millisecond
	start := time.Now()
	sum := Run(context.Background(), []string{"a", "b", "c"}, deliver, pace)

	assert.Equal(t, 3, sum.Sent)
	require.Len(t, stamps, 3)
	assert.Less(t, stamps[0].Sub(start), pace, "first delivery is not delayed")
	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), pace)
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), pace)
}

func TestRun_CanceledContextRunsToCompletion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	deliver := func(ctx context.Context, _ string) error {
		calls++
		return ctx.Err()
	}

	start := time.Now()
	sum := Run(ctx, []string{"a", "b", "c"}, deliver, time.Hour)

	assert.Equal(t, 3, calls)
	assert.Equal(t, Summary{Failed: 3}, sum)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestDispatcher_PublishesEvents(t *testing.T) {
	bus := events.NewBus(nil, testLogger())
	defer func() { _ = bus.Close() }()
	ch := bus.SubscribeAll(10)

	rec := &recorder{fail: map[string]bool{"2": true}}
	d := NewDispatcher(0, bus, testLogger())

	sum := d.Dispatch(context.Background(), 99, []string{"1", "2", "3"}, rec.deliver)
	assert.Equal(t, Summary{Sent: 2, Failed: 1}, sum)

	started := (<-ch).(*events.DispatchStarted)
	completed := (<-ch).(*events.DispatchCompleted)

	assert.Equal(t, 3, started.Items)
	assert.Equal(t, int64(99), completed.ChatID)
	assert.Equal(t, 2, completed.Sent)
	assert.Equal(t, 1, completed.Failed)
	assert.Equal(t, started.EntityID(), completed.EntityID())
	assert.NotEmpty(t, completed.EntityID())
}

func TestDispatcher_NilBus(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(-time.Second, nil, nil)

	sum := d.Dispatch(context.Background(), 1, []string{"x"}, rec.deliver)
	assert.Equal(t, Summary{Sent: 1}, sum)
}
