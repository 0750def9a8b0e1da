package common

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/amirasaad/crossledger/pkg/domain/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyTracker(t *testing.T) {
	t.Parallel()

	t.Run("Store and Delete", func(t *testing.T) {
		t.Parallel()
		tracker := NewIdempotencyTracker()
		key := "test-key-1"

		tracker.Store(key)
		_, already := tracker.processed.Load(key)
		assert.True(t, already)

		tracker.Delete(key)
		_, already = tracker.processed.Load(key)
		assert.False(t, already)
	})

	t.Run("Do collapses concurrent callers", func(t *testing.T) {
		t.Parallel()
		tracker := NewIdempotencyTracker()
		release := make(chan struct{})
		var runs atomic.Int32

		var wg sync.WaitGroup
		results := make([]any, 5)
		started := make(chan struct{})
		var once sync.Once
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				v, _, err := tracker.Do("same", func() (any, error) {
					runs.Add(1)
					once.Do(func() { close(started) })
					<-release
					return "row-1", nil
				})
				assert.NoError(t, err)
				results[i] = v
			}(i)
		}
		<-started
		close(release)
		wg.Wait()

		assert.LessOrEqual(t, runs.Load(), int32(5))
		assert.GreaterOrEqual(t, runs.Load(), int32(1))
		for _, v := range results {
			assert.Equal(t, "row-1", v)
		}
	})
}

func TestWithIdempotency(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx := context.Background()

	t.Run("executes handler when key is empty", func(t *testing.T) {
		t.Parallel()
		tracker := NewIdempotencyTracker()
		executed := 0
		handler := func(ctx context.Context, e events.Event) error {
			executed++
			return nil
		}
		wrapped := WithIdempotency(handler, tracker, func(events.Event) string { return "" }, "test-handler", logger)

		require.NoError(t, wrapped(ctx, &events.TransactionPurged{ID: uuid.New()}))
		require.NoError(t, wrapped(ctx, &events.TransactionPurged{ID: uuid.New()}))
		assert.Equal(t, 2, executed)
	})

	t.Run("skips handler when event already processed", func(t *testing.T) {
		t.Parallel()
		tracker := NewIdempotencyTracker()
		executed := 0
		handler := func(ctx context.Context, e events.Event) error {
			executed++
			return nil
		}
		wrapped := WithIdempotency(handler, tracker, EventKey, "test-handler", logger)
		event := &events.CrossClosed{CrossID: uuid.New()}

		require.NoError(t, wrapped(ctx, event))
		require.NoError(t, wrapped(ctx, event))
		assert.Equal(t, 1, executed)
	})

	t.Run("allows retry when handler fails", func(t *testing.T) {
		t.Parallel()
		tracker := NewIdempotencyTracker()
		handlerErr := errors.New("handler error")
		fail := true
		handler := func(ctx context.Context, e events.Event) error {
			if fail {
				return handlerErr
			}
			return nil
		}
		wrapped := WithIdempotency(handler, tracker, EventKey, "test-handler", logger)
		event := &events.TransactionAppended{ID: uuid.New()}

		err := wrapped(ctx, event)
		assert.ErrorIs(t, err, handlerErr)
		_, already := tracker.processed.Load(EventKey(event))
		assert.False(t, already)

		fail = false
		require.NoError(t, wrapped(ctx, event))
		_, already = tracker.processed.Load(EventKey(event))
		assert.True(t, already)
	})

	t.Run("uses default logger when nil logger provided", func(t *testing.T) {
		t.Parallel()
		tracker := NewIdempotencyTracker()
		executed := false
		handler := func(ctx context.Context, e events.Event) error {
			executed = true
			return nil
		}
		wrapped := WithIdempotency(handler, tracker, EventKey, "test-handler", nil)

		require.NoError(t, wrapped(ctx, &events.TransactionAppended{ID: uuid.New()}))
		assert.True(t, executed)
	})
}

func TestEventKey(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "Cross.Closed:"+id.String(), EventKey(&events.CrossClosed{CrossID: id}))
	assert.Equal(t, "Wallet.Created:Alice", EventKey(&events.WalletEvent{Kind: events.EventTypeWalletCreated, Name: "Alice"}))
	assert.Empty(t, EventKey(&events.CrossEvent{Kind: events.EventTypeCrossSuspended, CrossID: id}))
}
