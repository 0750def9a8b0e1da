package cross

import (
	"context"
	"fmt"

	"github.com/amirasaad/crossledger/pkg/commands"
	"github.com/amirasaad/crossledger/pkg/domain"
	"github.com/amirasaad/crossledger/pkg/domain/cross"
	"github.com/amirasaad/crossledger/pkg/domain/events"
	"github.com/amirasaad/crossledger/pkg/domain/ledger"
	"github.com/amirasaad/crossledger/pkg/domain/settlement"
	"github.com/amirasaad/crossledger/pkg/repository"
	"github.com/google/uuid"
)

// Close settles an active cross: it records the close on the cross row and
// appends one cross_close row per leg, in one unit of work.
//
// Retrying with the same inputs after a success returns the stored receipt
// with Replayed set and posts nothing. A closed cross asked to close with
// other inputs, or a suspended cross, fails with domain.ErrNotActive. Losing
// the conditional update to a concurrent writer fails with
// domain.ErrConcurrentModification.
func (m *Manager) Close(ctx context.Context, cmd commands.CloseCross) (*settlement.Receipt, error) {
	logger := m.logger.With("cross_id", cmd.CrossID, "operator", cmd.Operator)

	winner, err := cross.ParseSide(cmd.Winner)
	if err != nil {
		logger.Warn("Close cross rejected", "error", err)
		return nil, err
	}
	in := settlement.Input{
		FinalBalanceLong:  cmd.FinalBalanceLong,
		FinalBalanceShort: cmd.FinalBalanceShort,
		Winner:            winner,
		Fee:               cmd.Fee,
	}
	if _, err := settlement.Compute(in); err != nil {
		logger.Warn("Close cross rejected", "error", err)
		return nil, err
	}

	// Identical concurrent requests share one attempt; different inputs race
	// on the row lock and the loser sees the cross closed.
	flight := fmt.Sprintf("close:%s:%s:%s:%s:%s", cmd.CrossID, winner,
		in.FinalBalanceLong.String(), in.FinalBalanceShort.String(), in.Fee.String())
	v, _, err := m.tracker.Do(flight, func() (any, error) {
		receipt, rows, err := m.closeOnce(ctx, cmd, in)
		if err != nil {
			return nil, err
		}
		if receipt.Replayed {
			logger.Info("Close cross replayed")
			return receipt, nil
		}
		logger.Info("Close cross successful",
			"winner", receipt.Winner,
			"delta_long", receipt.DeltaLong.String(),
			"delta_short", receipt.DeltaShort.String(),
		)
		m.emit(ctx, closedEvent(receipt, cmd.Operator))
		m.writer.EmitAppended(ctx, rows...)
		return receipt, nil
	})
	if err != nil {
		logFailure(logger, "Close cross failed", err)
		return nil, err
	}
	receipt := *v.(*settlement.Receipt)
	receipt.TransactionIDs = append([]uuid.UUID(nil), receipt.TransactionIDs...)
	return &receipt, nil
}

func (m *Manager) closeOnce(
	ctx context.Context,
	cmd commands.CloseCross,
	in settlement.Input,
) (receipt *settlement.Receipt, rows []*ledger.Transaction, err error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	err = m.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.CrossRepository()
		if err != nil {
			return err
		}
		c, err := repo.GetForUpdate(ctx, cmd.CrossID)
		if err != nil {
			return err
		}

		if c.State == cross.StateClosed && sameInputs(c.Settlement, in) {
			receipt, err = rebuild(ctx, uow, c)
			if err != nil {
				return err
			}
			receipt.Replayed = true
			return nil
		}
		if c.State != cross.StateActive {
			return fmt.Errorf("%w: cross %s is %s", domain.ErrNotActive, c.ID, c.State)
		}
		if err := in.Validate(c.Currency); err != nil {
			return err
		}
		out, err := settlement.Compute(in)
		if err != nil {
			return err
		}

		at := m.now()
		from, version := c.State, c.Version
		err = c.Close(cross.Settlement{
			Winner:            in.Winner,
			FinalBalanceLong:  in.FinalBalanceLong,
			FinalBalanceShort: in.FinalBalanceShort,
			Fee:               in.Fee,
			ClosedBy:          cmd.Operator,
		}, at, cmd.Note)
		if err != nil {
			return err
		}
		if err := repo.Save(ctx, c, from, version); err != nil {
			return err
		}

		rows = rows[:0]
		for _, d := range settlement.Drafts(c, out, cmd.Operator, cmd.Note) {
			tx, err := m.writer.AppendInUnit(ctx, uow, d, at)
			if err != nil {
				return fmt.Errorf("settlement row for %s: %w", d.IdempotencyKey, err)
			}
			rows = append(rows, tx)
		}
		receipt, err = settlement.Rebuild(c, rows)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return receipt, rows, nil
}

// Receipt rebuilds the settlement receipt of a closed cross.
// An open or suspended cross has none and fails with domain.ErrInvalidTransition.
func (m *Manager) Receipt(ctx context.Context, id uuid.UUID) (*settlement.Receipt, error) {
	var receipt *settlement.Receipt
	err := m.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.CrossRepository()
		if err != nil {
			return err
		}
		c, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		receipt, err = rebuild(ctx, uow, c)
		return err
	})
	return receipt, err
}

func rebuild(ctx context.Context, uow repository.UnitOfWork, c *cross.Cross) (*settlement.Receipt, error) {
	txRepo, err := uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	id := c.ID
	rows, err := txRepo.List(ctx, repository.TransactionFilter{CrossID: &id, Kind: ledger.KindCrossClose})
	if err != nil {
		return nil, err
	}
	return settlement.Rebuild(c, rows)
}

func sameInputs(s *cross.Settlement, in settlement.Input) bool {
	return s != nil &&
		s.Winner == in.Winner &&
		s.FinalBalanceLong.Equal(in.FinalBalanceLong) &&
		s.FinalBalanceShort.Equal(in.FinalBalanceShort) &&
		s.Fee.Equal(in.Fee)
}

func closedEvent(r *settlement.Receipt, operator string) *events.CrossClosed {
	return &events.CrossClosed{
		Meta:       events.Meta{Operator: operator, Timestamp: r.ClosedAt},
		CrossID:    r.CrossID,
		Winner:     string(r.Winner),
		DeltaLong:  r.DeltaLong.String(),
		DeltaShort: r.DeltaShort.String(),
		Fee:        r.Fee.String(),
		Currency:   string(r.Currency),
		TxIDs:      append([]uuid.UUID(nil), r.TransactionIDs...),
	}
}
