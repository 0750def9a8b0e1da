package repository

import (
	"context"
	"time"

	"github.com/amirasaad/crossledger/pkg/domain/cross"
	"github.com/amirasaad/crossledger/pkg/domain/ledger"
	"github.com/amirasaad/crossledger/pkg/domain/wallet"
	"github.com/google/uuid"
)

// WalletFilter narrows a wallet listing. Nil fields match everything.
type WalletFilter struct {
	Kind   *wallet.Kind
	Active *bool
}

// WalletRepository is the catalog of named wallets.
type WalletRepository interface {
	// Create inserts a wallet. Returns domain.ErrAlreadyExists when the name is taken.
	Create(ctx context.Context, w *wallet.Wallet) error
	// Get returns domain.ErrNotFound for unknown names.
	Get(ctx context.Context, name string) (*wallet.Wallet, error)
	// List returns wallets ordered by name.
	List(ctx context.Context, filter WalletFilter) ([]*wallet.Wallet, error)
	// SetActive flips the active flag.
	SetActive(ctx context.Context, name string, active bool, at time.Time) error
	// Delete physically removes a wallet row.
	Delete(ctx context.Context, name string) error
}

// TransactionFilter narrows a ledger listing. Zero fields match everything.
type TransactionFilter struct {
	Wallet  string
	CrossID *uuid.UUID
	Status  ledger.Status
	Kind    ledger.Kind
	Since   *time.Time
	Until   *time.Time
	Limit   int
}

// TransactionRepository is the append-only ledger store.
type TransactionRepository interface {
	// Append inserts a new row. A duplicate idempotency key yields domain.ErrAlreadyExists.
	Append(ctx context.Context, tx *ledger.Transaction) error
	Get(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*ledger.Transaction, error)
	// List returns rows ordered by creation time, then id.
	List(ctx context.Context, filter TransactionFilter) ([]*ledger.Transaction, error)
	// ReferencingWallet returns up to limit ids of rows naming the wallet.
	ReferencingWallet(ctx context.Context, name string, limit int) ([]uuid.UUID, error)
	// IsReversed reports whether a correction reversing id exists.
	IsReversed(ctx context.Context, id uuid.UUID) (bool, error)
	// UpdateStatus moves a row from one status to another only if it is still in from.
	// Returns domain.ErrConcurrentModification when no row matched.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to ledger.Status) error
	// Delete removes a row. Callers enforce purge rules.
	Delete(ctx context.Context, id uuid.UUID) error
}

// CrossFilter narrows a cross listing.
type CrossFilter struct {
	State  cross.State
	Wallet string
	Limit  int
}

// CrossRepository persists crosses with their legs and bonuses.
type CrossRepository interface {
	// Create inserts the cross, both legs and all bonuses.
	Create(ctx context.Context, c *cross.Cross) error
	Get(ctx context.Context, id uuid.UUID) (*cross.Cross, error)
	// GetForUpdate is Get with a row lock where the store supports one.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*cross.Cross, error)
	// List returns crosses ordered by open date, newest first.
	List(ctx context.Context, filter CrossFilter) ([]*cross.Cross, error)
	// Save persists state, note, close record and version of c, but only if the
	// stored row still has state from and version expectedVersion.
	// Returns domain.ErrConcurrentModification when no row matched.
	Save(ctx context.Context, c *cross.Cross, from cross.State, expectedVersion int64) error
	// ReferencingWallet returns ids of crosses naming the wallet.
	ReferencingWallet(ctx context.Context, name string) ([]uuid.UUID, error)
	// Delete removes the cross with its legs and bonuses.
	Delete(ctx context.Context, id uuid.UUID) error
}
