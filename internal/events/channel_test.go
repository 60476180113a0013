package events

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Handle(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event{}, s.events...)
}

func TestChannelPublisherDeliversToWorker(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := NewChannelPublisher(8, logger)
	sink := &recordingSink{}
	worker := NewWorker(pub.Inbox(), sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	event := New(TypeStageAdvanced, "project-1")
	event.Payload = map[string]string{"stage": "assessment"}
	require.NoError(t, pub.Emit(ctx, event))

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)

	got := sink.snapshot()[0]
	assert.Equal(t, TypeStageAdvanced, got.Type)
	assert.Equal(t, "project-1", got.ProjectID)
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.OccurredAt.IsZero())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestChannelPublisherDropsOnFullBuffer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := NewChannelPublisher(1, logger)
	ctx := context.Background()

	// no worker draining: second emit must not block
	require.NoError(t, pub.Emit(ctx, New(TypeIndicatorReviewed, "p1")))
	require.NoError(t, pub.Emit(ctx, New(TypeIndicatorReviewed, "p1")))
}

func TestWorkerStopsOnClosedInbox(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := NewChannelPublisher(1, logger)
	worker := NewWorker(pub.Inbox(), LogSink{Logger: logger})

	require.NoError(t, pub.Close())
	assert.NoError(t, worker.Run(context.Background()))
}
