package repository

import (
	"context"
	"time"

	"github.com/amirasaad/crossledger/pkg/domain"
	"github.com/amirasaad/crossledger/pkg/domain/wallet"
	"github.com/amirasaad/crossledger/pkg/money"
	"github.com/amirasaad/crossledger/pkg/repository"
	"gorm.io/gorm"
)

type walletRepository struct {
	db *gorm.DB
}

// NewWalletRepository creates a gorm backed wallet repository.
func NewWalletRepository(db *gorm.DB) repository.WalletRepository {
	return &walletRepository{db: db}
}

// Create implements repository.WalletRepository.
func (r *walletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	m := mapWalletToModel(w)
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
}

// Get implements repository.WalletRepository.
func (r *walletRepository) Get(ctx context.Context, name string) (*wallet.Wallet, error) {
	var m Wallet
	if err := WrapError(func() error {
		return r.db.WithContext(ctx).Where("name = ?", name).First(&m).Error
	}); err != nil {
		return nil, err
	}
	return mapModelToWallet(&m), nil
}

// List implements repository.WalletRepository.
func (r *walletRepository) List(ctx context.Context, filter repository.WalletFilter) ([]*wallet.Wallet, error) {
	q := r.db.WithContext(ctx).Model(&Wallet{})
	if filter.Kind != nil {
		q = q.Where("kind = ?", string(*filter.Kind))
	}
	if filter.Active != nil {
		q = q.Where("active = ?", *filter.Active)
	}
	var ms []Wallet
	if err := WrapError(func() error {
		return q.Order("name ASC").Find(&ms).Error
	}); err != nil {
		return nil, err
	}
	result := make([]*wallet.Wallet, 0, len(ms))
	for i := range ms {
		result = append(result, mapModelToWallet(&ms[i]))
	}
	return result, nil
}

// SetActive implements repository.WalletRepository.
func (r *walletRepository) SetActive(ctx context.Context, name string, active bool, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&Wallet{}).
		Where("name = ?", name).
		Updates(map[string]any{"active": active, "updated_at": at})
	if res.Error != nil {
		return MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete implements repository.WalletRepository.
func (r *walletRepository) Delete(ctx context.Context, name string) error {
	res := r.db.WithContext(ctx).Where("name = ?", name).Delete(&Wallet{})
	if res.Error != nil {
		return MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// --- Mappers ---

func mapWalletToModel(w *wallet.Wallet) Wallet {
	return Wallet{
		Name:      w.Name,
		Owner:     w.Owner,
		Kind:      string(w.Kind),
		Currency:  string(w.Currency),
		Active:    w.Active,
		Note:      w.Note,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

func mapModelToWallet(m *Wallet) *wallet.Wallet {
	return &wallet.Wallet{
		Name:      m.Name,
		Owner:     m.Owner,
		Kind:      wallet.Kind(m.Kind),
		Currency:  money.Code(m.Currency),
		Active:    m.Active,
		Note:      m.Note,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
