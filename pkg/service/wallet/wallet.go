// Package wallet provides the wallet registry: creation, lookup and the
// soft and hard removal rules for named wallets.
package wallet

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
	"github.com/amirasaad/crossledger/pkg/domain/events"
	"github.com/amirasaad/crossledger/pkg/domain/wallet"
	"github.com/amirasaad/crossledger/pkg/eventbus"
	"github.com/amirasaad/crossledger/pkg/money"
	"github.com/amirasaad/crossledger/pkg/repository"
)

// MaxBlockingReferences caps the transaction ids listed in a delete rejection.
const MaxBlockingReferences = 20

// Service provides the wallet registry operations.
type Service struct {
	uow             repository.UnitOfWork
	bus             eventbus.Bus
	logger          *slog.Logger
	defaultCurrency money.Code
	now             func() time.Time
}

// New creates a new Service from the shared dependencies.
func New(deps config.Deps) *Service {
	s := &Service{
		uow:             deps.Uow,
		bus:             deps.EventBus,
		logger:          deps.Logger,
		defaultCurrency: money.DefaultCode,
		now:             func() time.Time { return time.Now().UTC() },
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if deps.Config != nil && deps.Config.Ledger != nil {
		if code, err := money.ParseCode(deps.Config.Ledger.DefaultCurrency); err == nil {
			s.defaultCurrency = code
		}
	}
	return s
}

// Create registers a new wallet. The name must be unused and may not be System.
func (s *Service) Create(
	ctx context.Context,
	cmd commands.CreateWallet,
) (w *wallet.Wallet, err error) {
	logger := s.logger.With("wallet", cmd.Name, "operator", cmd.Operator)

	code := s.defaultCurrency
	if strings.TrimSpace(cmd.Currency) != "" {
		if code, err = money.ParseCode(cmd.Currency); err != nil {
			logger.Warn("Create wallet rejected", "error", err)
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
	}
	now := s.now()
	w, err = wallet.New().
		WithName(cmd.Name).
		WithOwner(cmd.Owner).
		WithKind(wallet.Kind(strings.ToLower(strings.TrimSpace(cmd.Kind)))).
		WithCurrency(code).
		WithNote(cmd.Note).
		WithTimestamps(now, now).
		Build()
	if err != nil {
		logger.Warn("Create wallet rejected", "error", err)
		return nil, err
	}

	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.WalletRepository()
		if err != nil {
			return err
		}
		if err := repo.Create(ctx, w); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				return fmt.Errorf("%w: %q", domain.ErrDuplicateName, w.Name)
			}
			return err
		}
		return nil
	})
	if err != nil {
		s.logFailure(logger, "Create wallet failed", err)
		return nil, err
	}
	logger.Info("Create wallet successful", "kind", w.Kind, "currency", w.Currency)
	s.emit(ctx, walletEvent(events.EventTypeWalletCreated, w, cmd.Operator))
	return w, nil
}

// Get returns the wallet called name, active or not.
func (s *Service) Get(ctx context.Context, name string) (*wallet.Wallet, error) {
	repo, err := s.uow.WalletRepository()
	if err != nil {
		return nil, err
	}
	return repo.Get(ctx, strings.TrimSpace(name))
}

// List returns the wallets matching filter, ordered by name.
func (s *Service) List(ctx context.Context, filter repository.WalletFilter) ([]*wallet.Wallet, error) {
	repo, err := s.uow.WalletRepository()
	if err != nil {
		return nil, err
	}
	return repo.List(ctx, filter)
}

// Deactivate hides a wallet from new transactions. Its history and balance stay.
func (s *Service) Deactivate(ctx context.Context, name, operator string) (*wallet.Wallet, error) {
	return s.setActive(ctx, name, operator, false)
}

// Reactivate makes a deactivated wallet usable again.
func (s *Service) Reactivate(ctx context.Context, name, operator string) (*wallet.Wallet, error) {
	return s.setActive(ctx, name, operator, true)
}

func (s *Service) setActive(
	ctx context.Context,
	name, operator string,
	active bool,
) (w *wallet.Wallet, err error) {
	name = strings.TrimSpace(name)
	logger := s.logger.With("wallet", name, "operator", operator, "active", active)
	if wallet.IsSystem(name) {
		return nil, fmt.Errorf("%w: %q is reserved", domain.ErrValidation, name)
	}
	var changed bool
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.WalletRepository()
		if err != nil {
			return err
		}
		w, err = repo.Get(ctx, name)
		if err != nil {
			return err
		}
		if w.Active == active {
			return nil
		}
		now := s.now()
		if err := repo.SetActive(ctx, name, active, now); err != nil {
			return err
		}
		w.Active, w.UpdatedAt = active, now
		changed = true
		return nil
	})
	if err != nil {
		s.logFailure(logger, "Wallet status change failed", err)
		return nil, err
	}
	if !changed {
		logger.Debug("Wallet already in requested state")
		return w, nil
	}
	logger.Info("Wallet status change successful")
	kind := events.EventTypeWalletDeactivated
	if active {
		kind = events.EventTypeWalletReactivated
	}
	s.emit(ctx, walletEvent(kind, w, operator))
	return w, nil
}

// Delete physically removes a wallet. It is rejected with a
// *domain.ReferenceError while any transaction or cross names the wallet.
func (s *Service) Delete(ctx context.Context, name, operator string) error {
	name = strings.TrimSpace(name)
	logger := s.logger.With("wallet", name, "operator", operator)
	var deleted *wallet.Wallet
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.WalletRepository()
		if err != nil {
			return err
		}
		deleted, err = repo.Get(ctx, name)
		if err != nil {
			return err
		}

		txRepo, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		txIDs, err := txRepo.ReferencingWallet(ctx, name, MaxBlockingReferences)
		if err != nil {
			return err
		}
		crossRepo, err := uow.CrossRepository()
		if err != nil {
			return err
		}
		crossIDs, err := crossRepo.ReferencingWallet(ctx, name)
		if err != nil {
			return err
		}
		if len(txIDs) > 0 || len(crossIDs) > 0 {
			blocking := make([]string, 0, len(txIDs)+len(crossIDs))
			for _, id := range txIDs {
				blocking = append(blocking, "transaction "+id.String())
			}
			for _, id := range crossIDs {
				blocking = append(blocking, "cross "+id.String())
			}
			return domain.NewReferenceError("wallet "+name, blocking...)
		}
		return repo.Delete(ctx, name)
	})
	if err != nil {
		s.logFailure(logger, "Delete wallet failed", err)
		return err
	}
	logger.Info("Delete wallet successful")
	s.emit(ctx, walletEvent(events.EventTypeWalletDeleted, deleted, operator))
	return nil
}

func (s *Service) emit(ctx context.Context, e events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Emit(context.WithoutCancel(ctx), e); err != nil {
		s.logger.Error("failed to emit event", "type", e.Type(), "error", err)
	}
}

func (s *Service) logFailure(logger *slog.Logger, msg string, err error) {
	if errors.Is(err, domain.ErrStorageUnavailable) || errors.Is(err, domain.ErrConcurrentModification) {
		logger.Error(msg, "error", err)
		return
	}
	logger.Warn(msg, "error", err)
}

func walletEvent(kind events.EventType, w *wallet.Wallet, operator string) *events.WalletEvent {
	return &events.WalletEvent{
		Meta:     events.NewMeta(operator),
		Kind:     kind,
		Name:     w.Name,
		Owner:    w.Owner,
		Wallet:   string(w.Kind),
		Currency: string(w.Currency),
	}
}
