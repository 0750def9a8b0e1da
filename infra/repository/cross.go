package repository

import (
	"context"

	"github.com/amirasaad/crossledger/pkg/domain"
	"github.com/amirasaad/crossledger/pkg/domain/cross"
	"github.com/amirasaad/crossledger/pkg/money"
	"github.com/amirasaad/crossledger/pkg/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type crossRepository struct {
	db *gorm.DB
}

// NewCrossRepository creates a gorm backed cross repository.
func NewCrossRepository(db *gorm.DB) repository.CrossRepository {
	return &crossRepository{db: db}
}

// Create implements repository.CrossRepository. Legs and bonuses are written
// through the association, so callers run it inside a unit of work.
func (r *crossRepository) Create(ctx context.Context, c *cross.Cross) error {
	m := mapCrossToModel(c)
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
}

// Get implements repository.CrossRepository.
func (r *crossRepository) Get(ctx context.Context, id uuid.UUID) (*cross.Cross, error) {
	return r.get(ctx, r.db.WithContext(ctx), id)
}

// GetForUpdate implements repository.CrossRepository.
// The sqlite dialect drops the locking clause, postgres takes a row lock.
func (r *crossRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*cross.Cross, error) {
	return r.get(ctx, r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *crossRepository) get(ctx context.Context, q *gorm.DB, id uuid.UUID) (*cross.Cross, error) {
	var m Cross
	if err := WrapError(func() error {
		return q.First(&m, "id = ?", id).Error
	}); err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, []*Cross{&m}); err != nil {
		return nil, err
	}
	return mapModelToCross(&m), nil
}

func (r *crossRepository) loadChildren(ctx context.Context, ms []*Cross) error {
	if len(ms) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(ms))
	byID := make(map[uuid.UUID]*Cross, len(ms))
	for _, m := range ms {
		ids = append(ids, m.ID)
		byID[m.ID] = m
	}
	var legs []Leg
	if err := WrapError(func() error {
		return r.db.WithContext(ctx).Where("cross_id IN ?", ids).Find(&legs).Error
	}); err != nil {
		return err
	}
	var bonuses []Bonus
	if err := WrapError(func() error {
		return r.db.WithContext(ctx).Where("cross_id IN ?", ids).Order("unlock_date ASC").Find(&bonuses).Error
	}); err != nil {
		return err
	}
	for _, l := range legs {
		byID[l.CrossID].Legs = append(byID[l.CrossID].Legs, l)
	}
	for _, b := range bonuses {
		byID[b.CrossID].Bonuses = append(byID[b.CrossID].Bonuses, b)
	}
	return nil
}

// List implements repository.CrossRepository.
func (r *crossRepository) List(ctx context.Context, filter repository.CrossFilter) ([]*cross.Cross, error) {
	q := r.db.WithContext(ctx).Model(&Cross{})
	if filter.State != "" {
		q = q.Where("state = ?", string(filter.State))
	}
	if filter.Wallet != "" {
		q = q.Where(
			r.db.Where("team_wallet = ?", filter.Wallet).
				Or("id IN (?)", r.db.Model(&Leg{}).Select("cross_id").Where("client_wallet = ?", filter.Wallet)),
		)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var ms []Cross
	if err := WrapError(func() error {
		return q.Order("opened_at DESC").Order("id ASC").Find(&ms).Error
	}); err != nil {
		return nil, err
	}
	ptrs := make([]*Cross, len(ms))
	for i := range ms {
		ptrs[i] = &ms[i]
	}
	if err := r.loadChildren(ctx, ptrs); err != nil {
		return nil, err
	}
	result := make([]*cross.Cross, 0, len(ms))
	for _, m := range ptrs {
		result = append(result, mapModelToCross(m))
	}
	return result, nil
}

// Save implements repository.CrossRepository as a compare-and-swap on state and version.
func (r *crossRepository) Save(
	ctx context.Context,
	c *cross.Cross,
	from cross.State,
	expectedVersion int64,
) error {
	updates := map[string]any{
		"state":      string(c.State),
		"version":    c.Version,
		"note":       c.Note,
		"closed_at":  c.ClosedAt,
		"updated_at": c.UpdatedAt,
	}
	if s := c.Settlement; s != nil {
		updates["winner"] = string(s.Winner)
		updates["final_balance_long"] = decimal.NewNullDecimal(s.FinalBalanceLong)
		updates["final_balance_short"] = decimal.NewNullDecimal(s.FinalBalanceShort)
		updates["settlement_fee"] = decimal.NewNullDecimal(s.Fee)
		updates["closed_by"] = s.ClosedBy
	}
	res := r.db.WithContext(ctx).
		Model(&Cross{}).
		Where("id = ? AND state = ? AND version = ?", c.ID, string(from), expectedVersion).
		Updates(updates)
	if res.Error != nil {
		return MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrConcurrentModification
	}
	return nil
}

// ReferencingWallet implements repository.CrossRepository.
func (r *crossRepository) ReferencingWallet(ctx context.Context, name string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := WrapError(func() error {
		return r.db.WithContext(ctx).
			Model(&Cross{}).
			Where(
				r.db.Where("team_wallet = ?", name).
					Or("id IN (?)", r.db.Model(&Leg{}).Select("cross_id").Where("client_wallet = ?", name)),
			).
			Order("opened_at ASC").
			Pluck("id", &ids).Error
	}); err != nil {
		return nil, err
	}
	return ids, nil
}

// Delete implements repository.CrossRepository. Children go first so the
// delete works on stores without ON DELETE CASCADE enforcement.
func (r *crossRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := WrapError(func() error {
		return db.Where("cross_id = ?", id).Delete(&Bonus{}).Error
	}); err != nil {
		return err
	}
	if err := WrapError(func() error {
		return db.Where("cross_id = ?", id).Delete(&Leg{}).Error
	}); err != nil {
		return err
	}
	res := db.Where("id = ?", id).Delete(&Cross{})
	if res.Error != nil {
		return MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// --- Mappers ---

func mapCrossToModel(c *cross.Cross) Cross {
	m := Cross{
		ID:         c.ID,
		Name:       c.Name,
		Pair:       c.Pair,
		Volume:     c.Volume,
		Currency:   string(c.Currency),
		TeamWallet: c.TeamWallet,
		OpenedAt:   c.OpenedAt,
		ClosedAt:   c.ClosedAt,
		State:      string(c.State),
		Note:       c.Note,
		Version:    c.Version,
		CreatedBy:  c.CreatedBy,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
	for _, leg := range c.Legs() {
		m.Legs = append(m.Legs, Leg{
			ID:           leg.ID,
			CrossID:      c.ID,
			Side:         string(leg.Side),
			Client:       leg.Client,
			ClientWallet: leg.ClientWallet,
			Broker:       leg.Broker,
			Platform:     leg.Platform,
			Account:      leg.Account,
			Volume:       leg.Volume,
		})
	}
	for _, b := range c.Bonuses {
		m.Bonuses = append(m.Bonuses, Bonus{
			ID:         b.ID,
			CrossID:    c.ID,
			Amount:     b.Amount,
			Currency:   string(b.Currency),
			UnlockDate: b.UnlockDate,
			Note:       b.Note,
		})
	}
	if s := c.Settlement; s != nil {
		winner := string(s.Winner)
		m.Winner = &winner
		m.FinalBalanceLong = decimal.NewNullDecimal(s.FinalBalanceLong)
		m.FinalBalanceShort = decimal.NewNullDecimal(s.FinalBalanceShort)
		m.SettlementFee = decimal.NewNullDecimal(s.Fee)
		m.ClosedBy = s.ClosedBy
	}
	return m
}

func mapModelToCross(m *Cross) *cross.Cross {
	c := &cross.Cross{
		ID:         m.ID,
		Name:       m.Name,
		Pair:       m.Pair,
		Volume:     m.Volume,
		Currency:   money.Code(m.Currency),
		TeamWallet: m.TeamWallet,
		OpenedAt:   m.OpenedAt,
		ClosedAt:   m.ClosedAt,
		State:      cross.State(m.State),
		Note:       m.Note,
		Version:    m.Version,
		CreatedBy:  m.CreatedBy,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	for _, l := range m.Legs {
		leg := cross.Leg{
			ID:           l.ID,
			Side:         cross.Side(l.Side),
			Client:       l.Client,
			ClientWallet: l.ClientWallet,
			Broker:       l.Broker,
			Platform:     l.Platform,
			Account:      l.Account,
			Volume:       l.Volume,
		}
		if leg.Side == cross.SideShort {
			c.Short = leg
		} else {
			c.Long = leg
		}
	}
	bonuses := make([]cross.Bonus, 0, len(m.Bonuses))
	for _, b := range m.Bonuses {
		bonuses = append(bonuses, cross.Bonus{
			ID:         b.ID,
			Amount:     b.Amount,
			Currency:   money.Code(b.Currency),
			UnlockDate: b.UnlockDate,
			Note:       b.Note,
		})
	}
	if len(bonuses) > 0 {
		c.Bonuses = bonuses
	}
	if m.Winner != nil {
		c.Settlement = &cross.Settlement{
			Winner:            cross.Side(*m.Winner),
			FinalBalanceLong:  m.FinalBalanceLong.Decimal,
			FinalBalanceShort: m.FinalBalanceShort.Decimal,
			Fee:               m.SettlementFee.Decimal,
			ClosedBy:          m.ClosedBy,
		}
	}
	return c
}
