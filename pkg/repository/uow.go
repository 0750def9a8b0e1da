package repository

import (
	"context"
)

// UnitOfWork defines the contract for transactional work and type-safe repository access.
//
// Do runs the given function in a transaction boundary, providing a UnitOfWork whose
// repositories share that transaction. If fn returns an error, nothing fn wrote is kept.
type UnitOfWork interface {
	// Do executes the given function within a transaction boundary.
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error

	// Type-safe repository access methods
	WalletRepository() (WalletRepository, error)
	TransactionRepository() (TransactionRepository, error)
	CrossRepository() (CrossRepository, error)
}
