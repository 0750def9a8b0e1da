// Package common holds helpers shared by the ledger services and event subscribers.
package common

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/amirasaad/crossledger/pkg/domain/events"
	"github.com/amirasaad/crossledger/pkg/eventbus"
	"golang.org/x/sync/singleflight"
)

// KeyExtractor extracts an idempotency key from an event
type KeyExtractor func(events.Event) string

// IdempotencyTracker collapses concurrent work on one key and remembers
// which event keys were already handled.
type IdempotencyTracker struct {
	processed sync.Map
	inflight  singleflight.Group
}

// NewIdempotencyTracker creates a new idempotency tracker
func NewIdempotencyTracker() *IdempotencyTracker {
	return &IdempotencyTracker{}
}

// Store marks a key as processed
func (t *IdempotencyTracker) Store(key string) {
	t.processed.Store(key, struct{}{})
}

// Delete removes a key from the tracker
func (t *IdempotencyTracker) Delete(key string) {
	t.processed.Delete(key)
}

// Do runs fn once for all concurrent callers passing the same key. Every
// caller gets the same result; shared reports whether it was produced by
// another caller's run. Nothing is remembered once fn returns, so a later
// call runs fn again and relies on the store for replay.
func (t *IdempotencyTracker) Do(key string, fn func() (any, error)) (v any, shared bool, err error) {
	v, err, shared = t.inflight.Do(key, fn)
	return v, shared, err
}

// WithIdempotency wraps a handler with idempotency checking middleware.
// The middleware checks if the event has been processed before calling the handler,
// and marks it as processed after successful execution.
func WithIdempotency(
	handler eventbus.HandlerFunc,
	tracker *IdempotencyTracker,
	keyExtractor KeyExtractor,
	handlerName string,
	logger *slog.Logger,
) eventbus.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, e events.Event) error {
		key := keyExtractor(e)
		if key == "" {
			return handler(ctx, e)
		}

		log := logger.With(
			"handler", handlerName,
			"event_type", e.Type(),
			"idempotency_key", key,
		)

		if _, already := tracker.processed.Load(key); already {
			log.Debug("🔁 [SKIP] Event already processed")
			return nil
		}

		// Concurrent deliveries of one key share a single handler run and its result.
		_, err, _ := tracker.inflight.Do(handlerName+"|"+key, func() (any, error) {
			if _, already := tracker.processed.Load(key); already {
				return nil, nil
			}
			if err := handler(ctx, e); err != nil {
				return nil, err
			}
			tracker.processed.Store(key, struct{}{})
			return nil, nil
		})
		return err
	}
}

// EventKey derives a redelivery key for the ledger's own events.
// Events without a natural identity return "".
func EventKey(e events.Event) string {
	switch ev := e.(type) {
	case *events.TransactionAppended:
		return fmt.Sprintf("%s:%s", ev.Type(), ev.ID)
	case *events.TransactionStatusChanged:
		return fmt.Sprintf("%s:%s:%s", ev.Type(), ev.ID, ev.To)
	case *events.TransactionPurged:
		return fmt.Sprintf("%s:%s", ev.Type(), ev.ID)
	case *events.CrossClosed:
		return fmt.Sprintf("%s:%s", ev.Type(), ev.CrossID)
	case *events.CrossEvent:
		if ev.Kind == events.EventTypeCrossOpened || ev.Kind == events.EventTypeCrossDeleted {
			return fmt.Sprintf("%s:%s", ev.Type(), ev.CrossID)
		}
	case *events.WalletEvent:
		if ev.Kind == events.EventTypeWalletCreated || ev.Kind == events.EventTypeWalletDeleted {
			return fmt.Sprintf("%s:%s", ev.Type(), ev.Name)
		}
	}
	return ""
}
