package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/amirasaad/crossledger/pkg/domain"
	"github.com/amirasaad/crossledger/pkg/domain/cross"
	"github.com/amirasaad/crossledger/pkg/domain/ledger"
	"github.com/amirasaad/crossledger/pkg/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDb.Close() })
	dialector := postgres.New(postgres.Config{
		Conn:       mockDb,
		DriverName: "postgres",
	})
	db, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db, mock
}

func TestUoW_DoCommits(t *testing.T) {
	db, mock := newMockDB(t)
	uow := NewUoW(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := uow.Do(context.Background(), func(txUow repository.UnitOfWork) error {
		walletRepo, err := txUow.WalletRepository()
		require.NoError(t, err)
		_, ok := walletRepo.(*walletRepository)
		assert.True(t, ok)

		txRepo, err := txUow.TransactionRepository()
		require.NoError(t, err)
		_, ok = txRepo.(*transactionRepository)
		assert.True(t, ok)

		crossRepo, err := txUow.CrossRepository()
		require.NoError(t, err)
		_, ok = crossRepo.(*crossRepository)
		assert.True(t, ok)
		return nil
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUoW_DoRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	uow := NewUoW(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	sentinel := errors.New("validation failed")
	err := uow.Do(context.Background(), func(repository.UnitOfWork) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUoW_NestedDoJoinsTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	uow := NewUoW(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	err := uow.Do(context.Background(), func(outer repository.UnitOfWork) error {
		return outer.Do(context.Background(), func(inner repository.UnitOfWork) error {
			calls++
			assert.Same(t, outer, inner)
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCrossRepository_SaveIsCompareAndSwap(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCrossRepository(db)

	now := time.Now().UTC()
	c := &cross.Cross{
		ID:        uuid.New(),
		State:     cross.StateClosed,
		Version:   2,
		ClosedAt:  &now,
		UpdatedAt: now,
		Settlement: &cross.Settlement{
			Winner:            cross.SideLong,
			FinalBalanceLong:  decimal.RequireFromString("500"),
			FinalBalanceShort: decimal.RequireFromString("300"),
		},
	}

	mock.ExpectExec(`UPDATE "crosses" SET .* WHERE .*id = .* AND state = .* AND version = .*`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Save(context.Background(), c, cross.StateActive, 1))

	mock.ExpectExec(`UPDATE "crosses" SET .* WHERE .*id = .* AND state = .* AND version = .*`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Save(context.Background(), c, cross.StateActive, 1)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_UpdateStatusOnlyFromExpected(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)
	id := uuid.New()

	mock.ExpectExec(`UPDATE "transactions" SET "status"=.* WHERE .*id = .* AND status = .*`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), id, ledger.StatusPending, ledger.StatusCompleted)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	assert.NoError(t, mock.ExpectationsWereMet())
}
