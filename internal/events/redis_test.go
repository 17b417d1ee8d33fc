package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/timetracker/internal/events"
	"github.com/example/timetracker/internal/persistence"
	"github.com/example/timetracker/internal/testfixtures"
)

func newTestBus(t *testing.T) *events.Bus {
	t.Helper()
	harness := testfixtures.NewRedisHarness(t)
	bus, err := events.NewBus(&events.Config{
		Client:  harness.Client,
		Channel: "session-changes",
	})
	require.NoError(t, err)
	return bus
}

func receiveEvent(t *testing.T, stream <-chan events.ChangeEvent) events.ChangeEvent {
	t.Helper()
	select {
	case event, ok := <-stream:
		require.True(t, ok, "stream closed before delivering an event")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
		return events.ChangeEvent{}
	}
}

func TestBusPublishSubscribeRoundTrip(t *testing.T) {
	bus := newTestBus(t)

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	stream, cancel, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	defer cancel()

	draftID := "draft-1"
	session := persistence.Session{
		ID:          "session-1",
		UserID:      "alice",
		DraftID:     &draftID,
		StartTime:   testfixtures.ReferenceTime(),
		ElapsedTime: 4500,
		IsPaused:    true,
	}
	sent := events.ChangeEvent{
		Type:            events.TypeUpdate,
		Table:           events.SessionTable,
		CommitTimestamp: testfixtures.ReferenceTime().Add(5 * time.Second),
		New:             events.RecordFromSession(session),
	}
	require.NoError(t, bus.PublishSessionChange(ctx, sent))

	got := receiveEvent(t, stream)
	assert.Equal(t, events.TypeUpdate, got.Type)
	assert.Equal(t, events.SessionTable, got.Table)
	assert.True(t, got.CommitTimestamp.Equal(sent.CommitTimestamp))
	require.NotNil(t, got.New)
	assert.Equal(t, "session-1", got.New.ID)
	assert.Equal(t, "alice", got.New.UserID)
	require.NotNil(t, got.New.DraftID)
	assert.Equal(t, draftID, *got.New.DraftID)
	assert.Equal(t, int64(4500), got.New.ElapsedTime)
	assert.True(t, got.New.IsPaused)
}

func TestBusDropsUndecodablePayloads(t *testing.T) {
	harness := testfixtures.NewRedisHarness(t)
	bus, err := events.NewBus(&events.Config{
		Client:  harness.Client,
		Channel: "session-changes",
	})
	require.NoError(t, err)

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	stream, cancel, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	defer cancel()

	harness.Server.Publish("session-changes", "{not json")

	sent := events.ChangeEvent{
		Type:            events.TypeDelete,
		Table:           events.SessionTable,
		CommitTimestamp: testfixtures.ReferenceTime(),
	}
	require.NoError(t, bus.PublishSessionChange(ctx, sent))

	// The garbage payload is skipped; the next valid event still arrives.
	got := receiveEvent(t, stream)
	assert.Equal(t, events.TypeDelete, got.Type)
}

func TestBusSubscribeCancelClosesStream(t *testing.T) {
	bus := newTestBus(t)

	stream, cancel, err := bus.Subscribe(context.Background())
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-stream:
		assert.False(t, ok, "expected the stream to close")
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after cancel")
	}
}

func TestNewBusValidatesConfig(t *testing.T) {
	harness := testfixtures.NewRedisHarness(t)

	_, err := events.NewBus(nil)
	assert.Error(t, err)

	_, err = events.NewBus(&events.Config{Client: harness.Client})
	assert.Error(t, err)

	_, err = events.NewBus(&events.Config{Channel: "session-changes"})
	assert.Error(t, err)
}
