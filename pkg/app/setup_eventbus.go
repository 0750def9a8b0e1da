// Package app provides functionality for setting up and configuring the event Bus
// with all necessary event handlers for the application.
package app

import (
	"github.com/amirasaad/crossledger/pkg/domain/events"
	"github.com/amirasaad/crossledger/pkg/handler/audit"
	"github.com/amirasaad/crossledger/pkg/handler/common"
)

// setupEventBus subscribes the audit log and the metrics collector to every
// event type. Each subscriber has its own tracker so a redelivered event is
// skipped per subscriber, not across them.
func (a *App) setupEventBus() {
	bus := a.Deps.EventBus
	if bus == nil {
		return
	}
	logger := a.Deps.Logger
	auditTracker := common.NewIdempotencyTracker()
	metricsTracker := common.NewIdempotencyTracker()
	auditHandler := audit.Handle(logger)

	for name := range events.EventTypes {
		eventType := events.EventType(name)
		bus.Register(eventType, common.WithIdempotency(
			auditHandler,
			auditTracker,
			common.EventKey,
			"audit.Handle",
			logger,
		))
		bus.Register(eventType, common.WithIdempotency(
			a.Metrics.Handle,
			metricsTracker,
			common.EventKey,
			"metrics.Handle",
			logger,
		))
	}
}
