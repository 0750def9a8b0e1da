package repository

import (
	"context"

	"github.com/amirasaad/crossledger/pkg/repository"
	"gorm.io/gorm"
)

// UoW provides transaction boundary and repository access in one abstraction.
// Repositories obtained from a UoW inside Do share its transaction.
type UoW struct {
	db *gorm.DB
	tx *gorm.DB
}

// NewUoW creates a new UoW for the given *gorm.DB.
func NewUoW(db *gorm.DB) *UoW {
	return &UoW{db: db}
}

// Do runs the given function in a transaction boundary, providing a UoW with repository access.
// Calling Do on a UoW that is already inside a transaction joins it.
func (u *UoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	if u.tx != nil {
		return fn(u)
	}
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txnUow := &UoW{db: u.db, tx: tx}
		return fn(txnUow)
	})
	return MapGormErrorToDomain(err)
}

func (u *UoW) session() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

// WalletRepository returns a wallet repository bound to the current session.
func (u *UoW) WalletRepository() (repository.WalletRepository, error) {
	return NewWalletRepository(u.session()), nil
}

// TransactionRepository returns a ledger repository bound to the current session.
func (u *UoW) TransactionRepository() (repository.TransactionRepository, error) {
	return NewTransactionRepository(u.session()), nil
}

// CrossRepository returns a cross repository bound to the current session.
func (u *UoW) CrossRepository() (repository.CrossRepository, error) {
	return NewCrossRepository(u.session()), nil
}

var _ repository.UnitOfWork = (*UoW)(nil)
