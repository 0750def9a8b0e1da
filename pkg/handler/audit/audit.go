// Package audit logs every committed domain event as one structured line,
// giving operators a trail of who changed what independent of the ledger rows.
package audit

import (
	"context"
	"log/slog"

	"github.com/amirasaad/crossledger/pkg/domain/events"
)

// Handle returns a bus handler that writes one audit record per event.
func Handle(logger *slog.Logger) func(ctx context.Context, e events.Event) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("handler", "audit.Handle")
	return func(ctx context.Context, e events.Event) error {
		attrs := append([]any{"event_type", e.Type()}, fields(e)...)
		logger.InfoContext(ctx, "📝 [AUDIT] event committed", attrs...)
		return nil
	}
}

func fields(e events.Event) []any {
	switch ev := e.(type) {
	case *events.WalletEvent:
		return []any{
			"operator", ev.Operator,
			"at", ev.Timestamp,
			"wallet", ev.Name,
			"wallet_kind", ev.Wallet,
			"currency", ev.Currency,
		}
	case *events.TransactionAppended:
		return []any{
			"operator", ev.Operator,
			"at", ev.Timestamp,
			"transaction_id", ev.ID,
			"sender", ev.Sender,
			"recipient", ev.Recipient,
			"amount", ev.Amount,
			"currency", ev.Currency,
			"kind", ev.Kind,
			"status", ev.Status,
		}
	case *events.TransactionStatusChanged:
		return []any{
			"operator", ev.Operator,
			"at", ev.Timestamp,
			"transaction_id", ev.ID,
			"from", ev.From,
			"to", ev.To,
		}
	case *events.TransactionPurged:
		return []any{"operator", ev.Operator, "at", ev.Timestamp, "transaction_id", ev.ID}
	case *events.CrossEvent:
		return []any{
			"operator", ev.Operator,
			"at", ev.Timestamp,
			"cross_id", ev.CrossID,
			"name", ev.Name,
			"long_wallet", ev.LongWallet,
			"short_wallet", ev.ShortWallet,
		}
	case *events.CrossClosed:
		return []any{
			"operator", ev.Operator,
			"at", ev.Timestamp,
			"cross_id", ev.CrossID,
			"winner", ev.Winner,
			"delta_long", ev.DeltaLong,
			"delta_short", ev.DeltaShort,
			"fee", ev.Fee,
			"currency", ev.Currency,
			"transaction_ids", ev.TxIDs,
		}
	}
	return nil
}
