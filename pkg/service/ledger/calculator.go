package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/crossledger/pkg/config"
	"github.com/amirasaad/crossledger/pkg/domain"
	"github.com/amirasaad/crossledger/pkg/domain/ledger"
	"github.com/amirasaad/crossledger/pkg/domain/wallet"
	"github.com/amirasaad/crossledger/pkg/money"
	"github.com/amirasaad/crossledger/pkg/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Balance is the derived balance of one wallet.
type Balance struct {
	Wallet  string
	Kind    wallet.Kind
	Active  bool
	Balance money.Money
}

// TxFilter narrows a wallet's transaction listing.
type TxFilter struct {
	Status ledger.Status
	Kind   ledger.Kind
	Since  *time.Time
	Until  *time.Time
	Limit  int
}

// Calculator derives balances by replaying completed rows. It holds no state.
type Calculator struct {
	uow             repository.UnitOfWork
	logger          *slog.Logger
	defaultCurrency money.Code
}

// NewCalculator creates a Calculator from the shared dependencies.
func NewCalculator(deps config.Deps) *Calculator {
	c := &Calculator{
		uow:             deps.Uow,
		logger:          deps.Logger,
		defaultCurrency: money.DefaultCode,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if deps.Config != nil && deps.Config.Ledger != nil {
		if code, err := money.ParseCode(deps.Config.Ledger.DefaultCurrency); err == nil {
			c.defaultCurrency = code
		}
	}
	return c
}

// BalanceOf returns the sum of completed rows received by the wallet minus
// the sum of completed rows it sent. Rows in another currency than the
// wallet's are not part of its balance.
func (c *Calculator) BalanceOf(ctx context.Context, name string) (money.Money, error) {
	w, err := c.wallet(ctx, name)
	if err != nil {
		return money.Money{}, err
	}
	repo, err := c.uow.TransactionRepository()
	if err != nil {
		return money.Money{}, err
	}
	rows, err := repo.List(ctx, repository.TransactionFilter{Wallet: name, Status: ledger.StatusCompleted})
	if err != nil {
		c.logger.Error("BalanceOf failed", "wallet", name, "error", err)
		return money.Money{}, err
	}
	return replay(w, rows)
}

// Balances returns the balance sheet of every wallet matching filter, ordered by name.
func (c *Calculator) Balances(ctx context.Context, filter repository.WalletFilter) ([]Balance, error) {
	walletRepo, err := c.uow.WalletRepository()
	if err != nil {
		return nil, err
	}
	wallets, err := walletRepo.List(ctx, filter)
	if err != nil {
		c.logger.Error("Balances failed", "error", err)
		return nil, err
	}
	txRepo, err := c.uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	rows, err := txRepo.List(ctx, repository.TransactionFilter{Status: ledger.StatusCompleted})
	if err != nil {
		c.logger.Error("Balances failed", "error", err)
		return nil, err
	}

	sums := make(map[string]decimal.Decimal, len(wallets))
	currencies := make(map[string]money.Code, len(wallets))
	for _, w := range wallets {
		sums[w.Name] = decimal.Zero
		currencies[w.Name] = w.Currency
	}
	for _, tx := range rows {
		for _, name := range []string{tx.Sender, tx.Recipient} {
			if cur, ok := currencies[name]; ok && cur == tx.Currency {
				sums[name] = sums[name].Add(tx.Contribution(name))
			}
		}
	}

	out := make([]Balance, 0, len(wallets))
	for _, w := range wallets {
		m, err := money.New(sums[w.Name], w.Currency)
		if err != nil {
			return nil, fmt.Errorf("balance of %q: %w", w.Name, err)
		}
		out = append(out, Balance{Wallet: w.Name, Kind: w.Kind, Active: w.Active, Balance: m})
	}
	return out, nil
}

// Transactions lists the rows naming the wallet, oldest first.
func (c *Calculator) Transactions(
	ctx context.Context,
	name string,
	filter TxFilter,
) ([]*ledger.Transaction, error) {
	if _, err := c.wallet(ctx, name); err != nil {
		return nil, err
	}
	repo, err := c.uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	return repo.List(ctx, repository.TransactionFilter{
		Wallet: name,
		Status: filter.Status,
		Kind:   filter.Kind,
		Since:  filter.Since,
		Until:  filter.Until,
		Limit:  filter.Limit,
	})
}

// Get returns one ledger row.
func (c *Calculator) Get(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	repo, err := c.uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	return repo.Get(ctx, id)
}

func (c *Calculator) wallet(ctx context.Context, name string) (*wallet.Wallet, error) {
	if wallet.IsSystem(name) {
		return wallet.System(c.defaultCurrency), nil
	}
	repo, err := c.uow.WalletRepository()
	if err != nil {
		return nil, err
	}
	w, err := repo.Get(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownWallet, name)
	}
	return w, err
}

func replay(w *wallet.Wallet, rows []*ledger.Transaction) (money.Money, error) {
	sum := decimal.Zero
	for _, tx := range rows {
		// real wallets only ever hold their own currency; System is booked in
		// the default one and skips the rest
		if tx.Currency != w.Currency {
			continue
		}
		sum = sum.Add(tx.Contribution(w.Name))
	}
	return money.New(sum, w.Currency)
}
