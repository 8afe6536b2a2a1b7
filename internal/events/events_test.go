package events

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/vmunix/cinedex/internal/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Apply(db))
	return db
}

func indexed(locator, filename string) *FileIndexed {
	return &FileIndexed{
		BaseEvent: NewBaseEvent(EventFileIndexed, EntityFile, locator),
		Filename:  filename,
		Kind:      "movie",
		Key:       "movie",
		Title:     "Movie",
		Quality:   "1080P",
	}
}

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return nil
	}
}

func TestBus_SubscribeByType(t *testing.T) {
	bus := NewBus(nil, nil)
	defer func() { _ = bus.Close() }()

	failures := bus.Subscribe(10, EventIndexFailed)
	all := bus.SubscribeAll(10)

	require.NoError(t, bus.Publish(context.Background(), indexed("1", "Movie.mkv")))
	require.NoError(t, bus.Publish(context.Background(), &IndexFailed{
		BaseEvent: NewBaseEvent(EventIndexFailed, EntityFile, "2"),
		Filename:  "broken",
		Reason:    "empty title",
	}))

	got := receive(t, failures)
	assert.Equal(t, EventIndexFailed, got.EventType())
	assert.Equal(t, "2", got.EntityID())

	assert.Equal(t, EventFileIndexed, receive(t, all).EventType())
	assert.Equal(t, EventIndexFailed, receive(t, all).EventType())
}

func TestBus_FullSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus(nil, nil)
	defer func() { _ = bus.Close() }()

	ch := bus.SubscribeAll(1)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			_ = bus.Publish(context.Background(), indexed("x", "x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, ch, 1)
}

func TestBus_UnsubscribeAndClose(t *testing.T) {
	bus := NewBus(nil, nil)

	ch := bus.Subscribe(1, EventFileIndexed)
	bus.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)

	other := bus.SubscribeAll(1)
	require.NoError(t, bus.Close())
	_, open = <-other
	assert.False(t, open)

	require.NoError(t, bus.Close())
	assert.NoError(t, bus.Publish(context.Background(), indexed("1", "a")))

	late := bus.SubscribeAll(1)
	_, open = <-late
	assert.False(t, open)
}

func TestBus_PersistsToLog(t *testing.T) {
	log := NewEventLog(setupTestDB(t))
	bus := NewBus(log, nil)
	defer func() { _ = bus.Close() }()
	ctx := context.Background()

	require.NoError(t, bus.Publish(ctx, indexed("msg:7", "Movie.2020.1080p.mkv")))

	events, err := log.ForEntity(ctx, EntityFile, "msg:7")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventFileIndexed, events[0].EventType)
	assert.Contains(t, events[0].Payload, `"filename":"Movie.2020.1080p.mkv"`)
}

func TestEventLog_RecentSinceAndPrune(t *testing.T) {
	log := NewEventLog(setupTestDB(t))
	ctx := context.Background()

	old := indexed("old", "old.mkv")
	old.Timestamp = time.Now().Add(-48 * time.Hour)
	_, err := log.Append(ctx, old)
	require.NoError(t, err)

	for _, loc := range []string{"a", "b", "c"} {
		_, err := log.Append(ctx, indexed(loc, loc))
		require.NoError(t, err)
	}

	recent, err := log.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].EntityID)
	assert.Equal(t, "b", recent[1].EntityID)

	since, err := log.Since(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, since, 3)

	n, err := log.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	all, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRegistry_Unmarshal(t *testing.T) {
	log := NewEventLog(setupTestDB(t))
	ctx := context.Background()

	_, err := log.Append(ctx, &DispatchCompleted{
		BaseEvent: NewBaseEvent(EventDispatchCompleted, EntityDispatch, "batch-1"),
		ChatID:    42,
		Sent:      2,
		Failed:    1,
		Duration:  3 * time.Second,
	})
	require.NoError(t, err)

	raw, err := log.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, raw, 1)

	e, err := DefaultRegistry().Unmarshal(raw[0])
	require.NoError(t, err)
	dc, ok := e.(*DispatchCompleted)
	require.True(t, ok)
	assert.Equal(t, int64(42), dc.ChatID)
	assert.Equal(t, 2, dc.Sent)
	assert.Equal(t, "batch-1", dc.EntityID())

	_, err = NewRegistry().Unmarshal(raw[0])
	assert.Error(t, err)
}
