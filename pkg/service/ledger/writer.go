// Package ledger provides the transaction writer and the balance calculator.
//
// The writer is the only component that inserts ledger rows. It never updates
// an amount, sender or recipient; the one mutable column is the status of a
// pending row, moved by a compare-and-swap. Edits are modeled as a reversal
// followed by a corrected entry.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/crossledger/pkg/config"
	"github.com/amirasaad/crossledger/pkg/domain"
	"github.com/amirasaad/crossledger/pkg/domain/events"
	"github.com/amirasaad/crossledger/pkg/domain/ledger"
	"github.com/amirasaad/crossledger/pkg/domain/wallet"
	"github.com/amirasaad/crossledger/pkg/eventbus"
	"github.com/amirasaad/crossledger/pkg/handler/common"
	"github.com/amirasaad/crossledger/pkg/money"
	"github.com/amirasaad/crossledger/pkg/repository"
	"github.com/google/uuid"
)

// Writer validates and appends ledger rows.
type Writer struct {
	uow     repository.UnitOfWork
	bus     eventbus.Bus
	tracker *common.IdempotencyTracker
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
	newID   func() uuid.UUID
}

// NewWriter creates a Writer from the shared dependencies.
func NewWriter(deps config.Deps) *Writer {
	w := &Writer{
		uow:     deps.Uow,
		bus:     deps.EventBus,
		tracker: common.NewIdempotencyTracker(),
		logger:  deps.Logger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.New,
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if deps.Config != nil && deps.Config.Ledger != nil {
		w.timeout = deps.Config.Ledger.StorageTimeout
	}
	return w
}

func (w *Writer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, w.timeout)
}

// Append validates d and appends it as a new row.
//
// When d carries an idempotency key and a row with that key exists, the stored
// row is returned instead of inserting again; a stored row with a different
// payload fails with domain.ErrIdempotencyConflict. Concurrent calls with one
// key in this process share a single attempt.
func (w *Writer) Append(ctx context.Context, d ledger.Draft) (*ledger.Transaction, error) {
	d.Normalize()
	logger := w.logger.With(
		"sender", d.Sender,
		"recipient", d.Recipient,
		"kind", d.Kind,
		"idempotency_key", d.IdempotencyKey,
	)
	if err := d.Validate(); err != nil {
		logger.Warn("Append rejected", "error", err)
		return nil, err
	}

	run := func() (any, error) {
		tx, replayed, err := w.appendOnce(ctx, d)
		if err != nil {
			return nil, err
		}
		if replayed {
			logger.Info("Append replayed", "transaction_id", tx.ID)
			return tx, nil
		}
		logger.Info("Append successful", "transaction_id", tx.ID, "amount", tx.Amount.String(), "status", tx.Status)
		w.emit(ctx, transactionAppended(tx))
		return tx, nil
	}

	var v any
	var err error
	if d.IdempotencyKey == "" {
		v, err = run()
	} else {
		v, _, err = w.tracker.Do("tx:"+d.IdempotencyKey, run)
	}
	if err != nil {
		logFailure(logger, "Append failed", err)
		return nil, err
	}
	tx := v.(*ledger.Transaction)
	if d.IdempotencyKey != "" && !d.SamePayload(tx) {
		logger.Warn("Append rejected: idempotency key reused", "transaction_id", tx.ID)
		return nil, fmt.Errorf("%w: key %q belongs to transaction %s",
			domain.ErrIdempotencyConflict, d.IdempotencyKey, tx.ID)
	}
	return tx, nil
}

// appendOnce performs one attempt. replayed reports that an existing row was returned.
func (w *Writer) appendOnce(ctx context.Context, d ledger.Draft) (tx *ledger.Transaction, replayed bool, err error) {
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()

	err = w.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		if d.IdempotencyKey != "" {
			existing, err := lookupKey(ctx, uow, d.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				tx, replayed = existing, true
				return nil
			}
		}
		created, err := w.AppendInUnit(ctx, uow, d, w.now())
		if err != nil {
			return err
		}
		tx = created
		return nil
	})
	if err == nil {
		return tx, replayed, nil
	}
	// Another process won the race on the unique key; its row is the answer.
	if d.IdempotencyKey != "" && errors.Is(err, domain.ErrAlreadyExists) {
		var existing *ledger.Transaction
		if lerr := w.uow.Do(ctx, func(uow repository.UnitOfWork) error {
			var e error
			existing, e = lookupKey(ctx, uow, d.IdempotencyKey)
			return e
		}); lerr == nil && existing != nil {
			return existing, true, nil
		}
	}
	return nil, false, err
}

func lookupKey(ctx context.Context, uow repository.UnitOfWork, key string) (*ledger.Transaction, error) {
	repo, err := uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	tx, err := repo.GetByIdempotencyKey(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return tx, err
}

// AppendInUnit validates d against the wallet registry and inserts it inside
// a unit of work owned by the caller. No event is emitted; the caller does
// that after its commit.
func (w *Writer) AppendInUnit(
	ctx context.Context,
	uow repository.UnitOfWork,
	d ledger.Draft,
	at time.Time,
) (*ledger.Transaction, error) {
	d.Normalize()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	wallets, err := uow.WalletRepository()
	if err != nil {
		return nil, err
	}
	for _, name := range []string{d.Sender, d.Recipient} {
		wl, err := resolveWallet(ctx, wallets, name, d.Currency)
		if err != nil {
			return nil, err
		}
		// System is the only wallet that may hold another currency
		if !wl.AcceptsCurrency(d.Currency) {
			return nil, fmt.Errorf("%w: wallet %q holds %s, transaction is %s",
				domain.ErrCurrencyMismatch, wl.Name, wl.Currency, d.Currency)
		}
	}

	repo, err := uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	if d.ReversalOf != nil {
		if _, err := repo.Get(ctx, *d.ReversalOf); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("%w: reversed transaction %s", domain.ErrValidation, *d.ReversalOf)
			}
			return nil, err
		}
	}

	tx := d.Build(w.newID(), at)
	if err := repo.Append(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// resolveWallet returns the active wallet called name. System always resolves.
func resolveWallet(
	ctx context.Context,
	repo repository.WalletRepository,
	name string,
	currency money.Code,
) (*wallet.Wallet, error) {
	if wallet.IsSystem(name) {
		return wallet.System(currency), nil
	}
	wl, err := repo.Get(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownWallet, name)
		}
		return nil, err
	}
	if !wl.Active {
		return nil, fmt.Errorf("%w: %q is deactivated", domain.ErrUnknownWallet, name)
	}
	return wl, nil
}

// Reverse appends a correction that undoes a completed row.
// A row can be reversed once; corrections themselves can be reversed.
func (w *Writer) Reverse(
	ctx context.Context,
	id uuid.UUID,
	operator, note, key string,
) (*ledger.Transaction, error) {
	logger := w.logger.With("transaction_id", id, "operator", operator)
	var rev *ledger.Transaction
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()
	err := w.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		var err error
		rev, err = w.reverseInUnit(ctx, uow, id, operator, note, key)
		return err
	})
	if err != nil {
		logFailure(logger, "Reverse failed", err)
		return nil, err
	}
	logger.Info("Reverse successful", "reversal_id", rev.ID)
	w.emit(ctx, transactionAppended(rev))
	return rev, nil
}

func (w *Writer) reverseInUnit(
	ctx context.Context,
	uow repository.UnitOfWork,
	id uuid.UUID,
	operator, note, key string,
) (*ledger.Transaction, error) {
	repo, err := uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	if key != "" {
		existing, err := lookupKey(ctx, uow, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if existing.ReversalOf == nil || *existing.ReversalOf != id {
				return nil, fmt.Errorf("%w: key %q belongs to transaction %s",
					domain.ErrIdempotencyConflict, key, existing.ID)
			}
			return existing, nil
		}
	}
	orig, err := repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if orig.Status != ledger.StatusCompleted {
		return nil, fmt.Errorf("%w: only completed transactions are reversed, %s is %s",
			domain.ErrInvalidTransition, id, orig.Status)
	}
	reversed, err := repo.IsReversed(ctx, id)
	if err != nil {
		return nil, err
	}
	if reversed {
		return nil, fmt.Errorf("%w: transaction %s is already reversed", domain.ErrAlreadyExists, id)
	}
	if orig.Amount.IsZero() {
		return nil, fmt.Errorf("%w: marker rows carry no amount to reverse", domain.ErrValidation)
	}
	return w.AppendInUnit(ctx, uow, ledger.Reversal(orig, operator, note, key), w.now())
}

// Correct reverses the row id and appends corrected in one unit of work.
// The returned pair is (reversal, corrected entry). With a key, the reversal
// is stored under key and the entry under key + ":entry".
func (w *Writer) Correct(
	ctx context.Context,
	id uuid.UUID,
	corrected ledger.Draft,
	operator, key string,
) (*ledger.Transaction, *ledger.Transaction, error) {
	logger := w.logger.With("transaction_id", id, "operator", operator)
	corrected.Normalize()
	if corrected.Operator == "" {
		corrected.Operator = operator
	}
	if key != "" {
		corrected.IdempotencyKey = key + ":entry"
	}
	if err := corrected.Validate(); err != nil {
		logger.Warn("Correct rejected", "error", err)
		return nil, nil, err
	}

	var rev, entry *ledger.Transaction
	var replayed bool
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()
	err := w.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		if key != "" {
			existing, err := lookupKey(ctx, uow, corrected.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				if !corrected.SamePayload(existing) {
					return fmt.Errorf("%w: key %q", domain.ErrIdempotencyConflict, key)
				}
				entry, replayed = existing, true
				rev, err = lookupKey(ctx, uow, key)
				return err
			}
		}
		var err error
		rev, err = w.reverseInUnit(ctx, uow, id, operator, "", key)
		if err != nil {
			return err
		}
		entry, err = w.AppendInUnit(ctx, uow, corrected, w.now())
		return err
	})
	if err != nil {
		logFailure(logger, "Correct failed", err)
		return nil, nil, err
	}
	if replayed {
		logger.Info("Correct replayed", "entry_id", entry.ID)
		return rev, entry, nil
	}
	logger.Info("Correct successful", "reversal_id", rev.ID, "entry_id", entry.ID)
	w.emit(ctx, transactionAppended(rev))
	w.emit(ctx, transactionAppended(entry))
	return rev, entry, nil
}

// Complete moves a pending row to completed.
func (w *Writer) Complete(ctx context.Context, id uuid.UUID, operator string) (*ledger.Transaction, error) {
	return w.settle(ctx, id, ledger.StatusCompleted, operator)
}

// Fail moves a pending row to failed.
func (w *Writer) Fail(ctx context.Context, id uuid.UUID, operator string) (*ledger.Transaction, error) {
	return w.settle(ctx, id, ledger.StatusFailed, operator)
}

// Cancel moves a pending row to cancelled.
func (w *Writer) Cancel(ctx context.Context, id uuid.UUID, operator string) (*ledger.Transaction, error) {
	return w.settle(ctx, id, ledger.StatusCancelled, operator)
}

func (w *Writer) settle(
	ctx context.Context,
	id uuid.UUID,
	to ledger.Status,
	operator string,
) (*ledger.Transaction, error) {
	logger := w.logger.With("transaction_id", id, "to", to, "operator", operator)
	var tx *ledger.Transaction
	var from ledger.Status
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()
	err := w.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		tx, err = repo.Get(ctx, id)
		if err != nil {
			return err
		}
		from = tx.Status
		if from == ledger.StatusCompleted {
			return fmt.Errorf("%w: %s", domain.ErrImmutableTransaction, id)
		}
		if !from.CanTransitionTo(to) {
			return fmt.Errorf("%w: %s → %s", domain.ErrInvalidTransition, from, to)
		}
		if to == ledger.StatusCompleted {
			// wallets may have been deactivated while the row was pending
			wallets, err := uow.WalletRepository()
			if err != nil {
				return err
			}
			for _, name := range []string{tx.Sender, tx.Recipient} {
				if _, err := resolveWallet(ctx, wallets, name, tx.Currency); err != nil {
					return err
				}
			}
		}
		if err := repo.UpdateStatus(ctx, id, from, to); err != nil {
			return err
		}
		tx.Status = to
		return nil
	})
	if err != nil {
		logFailure(logger, "Status change failed", err)
		return nil, err
	}
	logger.Info("Status change successful", "from", from)
	w.emit(ctx, &events.TransactionStatusChanged{
		Meta: events.NewMeta(operator),
		ID:   id,
		From: string(from),
		To:   string(to),
	})
	return tx, nil
}

// Purge deletes a row that never counted towards a balance.
// Completed rows and rows tied to a cross are kept.
func (w *Writer) Purge(ctx context.Context, id uuid.UUID, operator string) error {
	logger := w.logger.With("transaction_id", id, "operator", operator)
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()
	err := w.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		tx, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if tx.Status == ledger.StatusCompleted {
			return fmt.Errorf("%w: completed rows are part of every later balance", domain.ErrImmutableTransaction)
		}
		if tx.CrossID != nil {
			return domain.NewReferenceError("transaction "+id.String(), "cross "+tx.CrossID.String())
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		logFailure(logger, "Purge failed", err)
		return err
	}
	logger.Info("Purge successful")
	w.emit(ctx, &events.TransactionPurged{Meta: events.NewMeta(operator), ID: id})
	return nil
}

// EmitAppended publishes a TransactionAppended event for rows a caller
// inserted through AppendInUnit.
func (w *Writer) EmitAppended(ctx context.Context, txs ...*ledger.Transaction) {
	for _, tx := range txs {
		w.emit(ctx, transactionAppended(tx))
	}
}

func (w *Writer) emit(ctx context.Context, e events.Event) {
	if w.bus == nil {
		return
	}
	// the operation already committed; a lost event is logged, not returned
	if err := w.bus.Emit(context.WithoutCancel(ctx), e); err != nil {
		w.logger.Error("failed to emit event", "type", e.Type(), "error", err)
	}
}

func transactionAppended(tx *ledger.Transaction) *events.TransactionAppended {
	return &events.TransactionAppended{
		Meta:      events.Meta{Operator: tx.Operator, Timestamp: tx.CreatedAt},
		ID:        tx.ID,
		Sender:    tx.Sender,
		Recipient: tx.Recipient,
		Amount:    tx.Money().StringAmount(),
		Currency:  string(tx.Currency),
		Kind:      string(tx.Kind),
		Status:    string(tx.Status),
		CrossID:   tx.CrossID,
	}
}

// logFailure logs caller mistakes at Warn and everything else at Error.
func logFailure(logger *slog.Logger, msg string, err error) {
	if IsBusinessError(err) {
		logger.Warn(msg, "error", err)
		return
	}
	logger.Error(msg, "error", err)
}

// IsBusinessError reports whether err is a rejection rather than a storage failure.
func IsBusinessError(err error) bool {
	return !errors.Is(err, domain.ErrStorageUnavailable) &&
		!errors.Is(err, domain.ErrConcurrentModification) &&
		!errors.Is(err, context.Canceled)
}
