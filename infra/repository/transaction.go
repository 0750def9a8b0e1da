package repository

import (
	"context"

	"github.com/amirasaad/crossledger/pkg/domain"
	"github.com/amirasaad/crossledger/pkg/domain/ledger"
	"github.com/amirasaad/crossledger/pkg/money"
	"github.com/amirasaad/crossledger/pkg/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates an insert-only gorm ledger repository.
func NewTransactionRepository(db *gorm.DB) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

// Append implements repository.TransactionRepository.
func (r *transactionRepository) Append(ctx context.Context, tx *ledger.Transaction) error {
	m := mapTransactionToModel(tx)
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
}

// Get implements repository.TransactionRepository.
func (r *transactionRepository) Get(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	var m Transaction
	if err := WrapError(func() error {
		return r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	}); err != nil {
		return nil, err
	}
	return mapModelToTransaction(&m), nil
}

// GetByIdempotencyKey implements repository.TransactionRepository.
func (r *transactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*ledger.Transaction, error) {
	var m Transaction
	if err := WrapError(func() error {
		return r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&m).Error
	}); err != nil {
		return nil, err
	}
	return mapModelToTransaction(&m), nil
}

// List implements repository.TransactionRepository.
func (r *transactionRepository) List(
	ctx context.Context,
	filter repository.TransactionFilter,
) ([]*ledger.Transaction, error) {
	q := r.db.WithContext(ctx).Model(&Transaction{})
	if filter.Wallet != "" {
		q = q.Where(
			r.db.Where("sender = ?", filter.Wallet).Or("recipient = ?", filter.Wallet),
		)
	}
	if filter.CrossID != nil {
		q = q.Where("cross_id = ?", *filter.CrossID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.Kind != "" {
		q = q.Where("kind = ?", string(filter.Kind))
	}
	if filter.Since != nil {
		q = q.Where("created_at >= ?", *filter.Since)
	}
	if filter.Until != nil {
		q = q.Where("created_at < ?", *filter.Until)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var ms []Transaction
	if err := WrapError(func() error {
		return q.Order("created_at ASC").Order("id ASC").Find(&ms).Error
	}); err != nil {
		return nil, err
	}
	result := make([]*ledger.Transaction, 0, len(ms))
	for i := range ms {
		result = append(result, mapModelToTransaction(&ms[i]))
	}
	return result, nil
}

// ReferencingWallet implements repository.TransactionRepository.
func (r *transactionRepository) ReferencingWallet(ctx context.Context, name string, limit int) ([]uuid.UUID, error) {
	q := r.db.WithContext(ctx).
		Model(&Transaction{}).
		Where(r.db.Where("sender = ?", name).Or("recipient = ?", name)).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var ids []uuid.UUID
	if err := WrapError(func() error {
		return q.Pluck("id", &ids).Error
	}); err != nil {
		return nil, err
	}
	return ids, nil
}

// IsReversed implements repository.TransactionRepository.
func (r *transactionRepository) IsReversed(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := WrapError(func() error {
		return r.db.WithContext(ctx).
			Model(&Transaction{}).
			Where("reversal_of = ? AND status = ?", id, string(ledger.StatusCompleted)).
			Count(&count).Error
	}); err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateStatus implements repository.TransactionRepository.
func (r *transactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to ledger.Status) error {
	res := r.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if res.Error != nil {
		return MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrConcurrentModification
	}
	return nil
}

// Delete implements repository.TransactionRepository.
func (r *transactionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Transaction{})
	if res.Error != nil {
		return MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// --- Mappers ---

func mapTransactionToModel(tx *ledger.Transaction) Transaction {
	m := Transaction{
		ID:          tx.ID,
		Sender:      tx.Sender,
		Recipient:   tx.Recipient,
		Amount:      tx.Amount,
		Currency:    string(tx.Currency),
		Kind:        string(tx.Kind),
		Status:      string(tx.Status),
		ExternalRef: tx.ExternalRef,
		Note:        tx.Note,
		Operator:    tx.Operator,
		CrossID:     tx.CrossID,
		ReversalOf:  tx.ReversalOf,
		CreatedAt:   tx.CreatedAt,
	}
	if tx.Fee != nil {
		m.Fee = decimal.NewNullDecimal(*tx.Fee)
	}
	if tx.IdempotencyKey != "" {
		key := tx.IdempotencyKey
		m.IdempotencyKey = &key
	}
	return m
}

func mapModelToTransaction(m *Transaction) *ledger.Transaction {
	tx := &ledger.Transaction{
		ID:          m.ID,
		Sender:      m.Sender,
		Recipient:   m.Recipient,
		Amount:      m.Amount,
		Currency:    money.Code(m.Currency),
		Kind:        ledger.Kind(m.Kind),
		Status:      ledger.Status(m.Status),
		ExternalRef: m.ExternalRef,
		Note:        m.Note,
		Operator:    m.Operator,
		CrossID:     m.CrossID,
		ReversalOf:  m.ReversalOf,
		CreatedAt:   m.CreatedAt,
	}
	if m.Fee.Valid {
		fee := m.Fee.Decimal
		tx.Fee = &fee
	}
	if m.IdempotencyKey != nil {
		tx.IdempotencyKey = *m.IdempotencyKey
	}
	return tx
}
