// Package cross provides the cross lifecycle manager. It opens hedge crosses
// with their bookkeeping markers, moves them through the state machine and
// settles them exactly once through the ledger writer.
package cross

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amirasaad/crossledger/pkg/commands"
	"github.com/amirasaad/crossledger/pkg/config"
	"github.com/amirasaad/crossledger/pkg/domain"
	"github.com/amirasaad/crossledger/pkg/domain/cross"
	"github.com/amirasaad/crossledger/pkg/domain/events"
	"github.com/amirasaad/crossledger/pkg/domain/ledger"
	"github.com/amirasaad/crossledger/pkg/domain/settlement"
	"github.com/amirasaad/crossledger/pkg/domain/wallet"
	"github.com/amirasaad/crossledger/pkg/eventbus"
	"github.com/amirasaad/crossledger/pkg/handler/common"
	"github.com/amirasaad/crossledger/pkg/money"
	"github.com/amirasaad/crossledger/pkg/repository"
	ledgersvc "github.com/amirasaad/crossledger/pkg/service/ledger"
	"github.com/google/uuid"
)

// Manager owns the cross state machine.
type Manager struct {
	uow             repository.UnitOfWork
	bus             eventbus.Bus
	writer          *ledgersvc.Writer
	tracker         *common.IdempotencyTracker
	logger          *slog.Logger
	teamWallet      string
	defaultCurrency money.Code
	timeout         time.Duration
	now             func() time.Time
}

// NewManager creates a Manager. Ledger rows go through writer.
func NewManager(deps config.Deps, writer *ledgersvc.Writer) *Manager {
	m := &Manager{
		uow:             deps.Uow,
		bus:             deps.EventBus,
		writer:          writer,
		tracker:         common.NewIdempotencyTracker(),
		logger:          deps.Logger,
		defaultCurrency: money.DefaultCode,
		now:             func() time.Time { return time.Now().UTC() },
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if deps.Config != nil && deps.Config.Ledger != nil {
		m.teamWallet = deps.Config.Ledger.TeamWallet
		m.timeout = deps.Config.Ledger.StorageTimeout
		if code, err := money.ParseCode(deps.Config.Ledger.DefaultCurrency); err == nil {
			m.defaultCurrency = code
		}
	}
	return m
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.timeout)
}

// Open creates an active cross with both legs, its bonuses and one zero
// amount cross_open marker per leg, all in one unit of work.
func (m *Manager) Open(ctx context.Context, cmd commands.OpenCross) (*cross.Cross, error) {
	logger := m.logger.With("cross", cmd.Name, "operator", cmd.Operator)

	c, err := m.build(cmd)
	if err != nil {
		logger.Warn("Open cross rejected", "error", err)
		return nil, err
	}
	logger = logger.With("cross_id", c.ID)

	var markers []*ledger.Transaction
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	err = m.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		if err := checkWallets(ctx, uow, c); err != nil {
			return err
		}
		repo, err := uow.CrossRepository()
		if err != nil {
			return err
		}
		if err := repo.Create(ctx, c); err != nil {
			return err
		}
		markers = markers[:0]
		for _, d := range settlement.OpenMarkers(c, cmd.Operator) {
			tx, err := m.writer.AppendInUnit(ctx, uow, d, c.CreatedAt)
			if err != nil {
				return fmt.Errorf("open marker for %s leg: %w", d.Recipient, err)
			}
			markers = append(markers, tx)
		}
		return nil
	})
	if err != nil {
		logFailure(logger, "Open cross failed", err)
		return nil, err
	}

	logger.Info("Open cross successful",
		"pair", c.Pair,
		"long_wallet", c.Long.ClientWallet,
		"short_wallet", c.Short.ClientWallet,
		"bonuses", len(c.Bonuses),
	)
	m.emit(ctx, crossEvent(events.EventTypeCrossOpened, c, cmd.Operator))
	m.writer.EmitAppended(ctx, markers...)
	return c, nil
}

func (m *Manager) build(cmd commands.OpenCross) (*cross.Cross, error) {
	code := m.defaultCurrency
	if strings.TrimSpace(cmd.Currency) != "" {
		var err error
		if code, err = money.ParseCode(cmd.Currency); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
	}
	team := cmd.TeamWallet
	if strings.TrimSpace(team) == "" {
		team = m.teamWallet
	}

	b := cross.New().
		WithName(cmd.Name).
		WithPair(cmd.Pair).
		WithVolume(cmd.Volume).
		WithCurrency(code).
		WithTeamWallet(team).
		WithOpenedAt(cmd.OpenedAt).
		WithNote(cmd.Note).
		WithCreatedBy(cmd.Operator)
	for side, leg := range map[cross.Side]commands.Leg{cross.SideLong: cmd.Long, cross.SideShort: cmd.Short} {
		b.WithLeg(cross.Leg{
			Side:         side,
			Client:       leg.Client,
			ClientWallet: leg.ClientWallet,
			Broker:       strings.TrimSpace(leg.Broker),
			Platform:     strings.TrimSpace(leg.Platform),
			Account:      strings.TrimSpace(leg.Account),
			Volume:       leg.Volume,
		})
	}
	for _, bonus := range cmd.Bonuses {
		bc := code
		if strings.TrimSpace(bonus.Currency) != "" {
			var err error
			if bc, err = money.ParseCode(bonus.Currency); err != nil {
				return nil, fmt.Errorf("%w: bonus: %v", domain.ErrValidation, err)
			}
		}
		b.WithBonus(cross.Bonus{
			Amount:     bonus.Amount,
			Currency:   bc,
			UnlockDate: bonus.UnlockDate,
			Note:       bonus.Note,
		})
	}
	return b.Build(m.now())
}

// checkWallets resolves the legs to active client wallets and the team
// wallet to an active team or collaborator wallet, all in the cross currency.
func checkWallets(ctx context.Context, uow repository.UnitOfWork, c *cross.Cross) error {
	repo, err := uow.WalletRepository()
	if err != nil {
		return err
	}
	get := func(name string) (*wallet.Wallet, error) {
		if wallet.IsSystem(name) {
			return nil, fmt.Errorf("%w: %q cannot take part in a cross", domain.ErrUnknownWallet, name)
		}
		w, err := repo.Get(ctx, name)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownWallet, name)
		}
		if err != nil {
			return nil, err
		}
		if !w.Active {
			return nil, fmt.Errorf("%w: %q is deactivated", domain.ErrUnknownWallet, name)
		}
		if w.Currency != c.Currency {
			return nil, fmt.Errorf("%w: wallet %q holds %s, cross is %s",
				domain.ErrCurrencyMismatch, name, w.Currency, c.Currency)
		}
		return w, nil
	}

	team, err := get(c.TeamWallet)
	if err != nil {
		return err
	}
	if !team.CanEscrow() {
		return fmt.Errorf("%w: team wallet %q is a %s wallet", domain.ErrValidation, team.Name, team.Kind)
	}
	for _, leg := range c.Legs() {
		w, err := get(leg.ClientWallet)
		if err != nil {
			return err
		}
		if w.Kind != wallet.KindClient {
			return fmt.Errorf("%w: %s leg wallet %q is a %s wallet", domain.ErrInvalidLeg, leg.Side, w.Name, w.Kind)
		}
	}
	return nil
}

// Suspend moves an active cross to suspended. A suspended cross cannot close.
func (m *Manager) Suspend(ctx context.Context, cmd commands.TransitionCross) (*cross.Cross, error) {
	return m.transition(ctx, cmd, events.EventTypeCrossSuspended, (*cross.Cross).Suspend)
}

// Resume moves a suspended cross back to active.
func (m *Manager) Resume(ctx context.Context, cmd commands.TransitionCross) (*cross.Cross, error) {
	return m.transition(ctx, cmd, events.EventTypeCrossResumed, (*cross.Cross).Resume)
}

func (m *Manager) transition(
	ctx context.Context,
	cmd commands.TransitionCross,
	kind events.EventType,
	apply func(c *cross.Cross, at time.Time, operator, note string) error,
) (c *cross.Cross, err error) {
	logger := m.logger.With("cross_id", cmd.CrossID, "operator", cmd.Operator, "event", kind)
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	err = m.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.CrossRepository()
		if err != nil {
			return err
		}
		c, err = repo.GetForUpdate(ctx, cmd.CrossID)
		if err != nil {
			return err
		}
		from, version := c.State, c.Version
		if err := apply(c, m.now(), cmd.Operator, cmd.Note); err != nil {
			return err
		}
		return repo.Save(ctx, c, from, version)
	})
	if err != nil {
		logFailure(logger, "Cross transition failed", err)
		return nil, err
	}
	logger.Info("Cross transition successful", "state", c.State, "version", c.Version)
	m.emit(ctx, crossEvent(kind, c, cmd.Operator))
	return c, nil
}

// Get returns one cross with its legs and bonuses.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*cross.Cross, error) {
	repo, err := m.uow.CrossRepository()
	if err != nil {
		return nil, err
	}
	return repo.Get(ctx, id)
}

// List returns crosses matching filter, newest first.
func (m *Manager) List(ctx context.Context, filter repository.CrossFilter) ([]*cross.Cross, error) {
	repo, err := m.uow.CrossRepository()
	if err != nil {
		return nil, err
	}
	return repo.List(ctx, filter)
}

// Delete removes a cross, its legs, its bonuses and its open markers.
// It is rejected with a *domain.ReferenceError while any settlement row of
// the cross that moved funds is not reversed. Settlement rows and their
// reversals stay in the ledger.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID, operator string) error {
	logger := m.logger.With("cross_id", id, "operator", operator)
	var deleted *cross.Cross
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	err := m.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.CrossRepository()
		if err != nil {
			return err
		}
		deleted, err = repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		txRepo, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		rows, err := txRepo.List(ctx, repository.TransactionFilter{CrossID: &id})
		if err != nil {
			return err
		}

		var blocking []string
		var markers []uuid.UUID
		for _, tx := range rows {
			switch {
			case tx.Kind == ledger.KindCrossOpen:
				markers = append(markers, tx.ID)
			case tx.Kind == ledger.KindCrossClose && tx.ReversalOf == nil &&
				tx.Status == ledger.StatusCompleted && !tx.Amount.IsZero():
				reversed, err := txRepo.IsReversed(ctx, tx.ID)
				if err != nil {
					return err
				}
				if !reversed {
					blocking = append(blocking, "transaction "+tx.ID.String())
				}
			}
		}
		if len(blocking) > 0 {
			return domain.NewReferenceError("cross "+id.String(), blocking...)
		}
		for _, markerID := range markers {
			if err := txRepo.Delete(ctx, markerID); err != nil {
				return err
			}
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		logFailure(logger, "Delete cross failed", err)
		return err
	}
	logger.Info("Delete cross successful", "state", deleted.State)
	m.emit(ctx, crossEvent(events.EventTypeCrossDeleted, deleted, operator))
	return nil
}

func (m *Manager) emit(ctx context.Context, e events.Event) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Emit(context.WithoutCancel(ctx), e); err != nil {
		m.logger.Error("failed to emit event", "type", e.Type(), "error", err)
	}
}

func logFailure(logger *slog.Logger, msg string, err error) {
	if ledgersvc.IsBusinessError(err) {
		logger.Warn(msg, "error", err)
		return
	}
	logger.Error(msg, "error", err)
}

func crossEvent(kind events.EventType, c *cross.Cross, operator string) *events.CrossEvent {
	return &events.CrossEvent{
		Meta:        events.NewMeta(operator),
		Kind:        kind,
		CrossID:     c.ID,
		Name:        c.Name,
		Pair:        c.Pair,
		LongWallet:  c.Long.ClientWallet,
		ShortWallet: c.Short.ClientWallet,
	}
}
