package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet represents a persisted wallet. There is no balance column.
type Wallet struct {
	Name      string    `gorm:"type:varchar(64);primaryKey"`
	Owner     string    `gorm:"type:varchar(128);not null"`
	Kind      string    `gorm:"type:varchar(16);not null;index"`
	Currency  string    `gorm:"type:varchar(5);not null"`
	Active    bool      `gorm:"not null;default:true;index"`
	Note      string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for the Wallet model.
func (Wallet) TableName() string {
	return "wallets"
}

// Transaction represents one persisted ledger row.
// Sender and recipient are plain names: the System counterparty has no wallet row.
type Transaction struct {
	ID             uuid.UUID           `gorm:"type:uuid;primaryKey"`
	Sender         string              `gorm:"type:varchar(64);not null;index"`
	Recipient      string              `gorm:"type:varchar(64);not null;index"`
	Amount         decimal.Decimal     `gorm:"type:numeric(24,8);not null"`
	Currency       string              `gorm:"type:varchar(5);not null"`
	Kind           string              `gorm:"type:varchar(16);not null;index"`
	Status         string              `gorm:"type:varchar(16);not null;default:'completed';index"`
	Fee            decimal.NullDecimal `gorm:"type:numeric(24,8)"`
	ExternalRef    string              `gorm:"type:varchar(128);column:external_ref"`
	Note           string              `gorm:"type:text"`
	Operator       string              `gorm:"type:varchar(128)"`
	CrossID        *uuid.UUID          `gorm:"type:uuid;index"`
	ReversalOf     *uuid.UUID          `gorm:"type:uuid;index"`
	IdempotencyKey *string             `gorm:"type:varchar(128);uniqueIndex"`
	CreatedAt      time.Time           `gorm:"not null;index"`
}

// TableName specifies the table name for the Transaction model.
func (Transaction) TableName() string {
	return "transactions"
}

// Cross represents a persisted cross with its close record inline.
type Cross struct {
	ID                uuid.UUID           `gorm:"type:uuid;primaryKey"`
	Name              string              `gorm:"type:varchar(128);not null"`
	Pair              string              `gorm:"type:varchar(32);not null"`
	Volume            decimal.Decimal     `gorm:"type:numeric(24,8);not null"`
	Currency          string              `gorm:"type:varchar(5);not null"`
	TeamWallet        string              `gorm:"type:varchar(64);not null;index"`
	OpenedAt          time.Time           `gorm:"not null;index"`
	ClosedAt          *time.Time
	State             string              `gorm:"type:varchar(16);not null;index"`
	Note              string              `gorm:"type:text"`
	Version           int64               `gorm:"not null;default:1"`
	Winner            *string             `gorm:"type:varchar(8)"`
	FinalBalanceLong  decimal.NullDecimal `gorm:"type:numeric(24,8)"`
	FinalBalanceShort decimal.NullDecimal `gorm:"type:numeric(24,8)"`
	SettlementFee     decimal.NullDecimal `gorm:"type:numeric(24,8)"`
	ClosedBy          string              `gorm:"type:varchar(128)"`
	CreatedBy         string              `gorm:"type:varchar(128)"`
	CreatedAt         time.Time           `gorm:"not null"`
	UpdatedAt         time.Time           `gorm:"not null"`
	Legs              []Leg               `gorm:"foreignKey:CrossID;constraint:OnDelete:CASCADE"`
	Bonuses           []Bonus             `gorm:"foreignKey:CrossID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Cross model.
func (Cross) TableName() string {
	return "crosses"
}

// Leg represents one side of a persisted cross.
type Leg struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CrossID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_cross_legs_side"`
	Side         string          `gorm:"type:varchar(8);not null;uniqueIndex:idx_cross_legs_side"`
	Client       string          `gorm:"type:varchar(128);not null"`
	ClientWallet string          `gorm:"type:varchar(64);not null;index"`
	Broker       string          `gorm:"type:varchar(128)"`
	Platform     string          `gorm:"type:varchar(64)"`
	Account      string          `gorm:"type:varchar(64)"`
	Volume       decimal.Decimal `gorm:"type:numeric(24,8);not null"`
}

// TableName specifies the table name for the Leg model.
func (Leg) TableName() string {
	return "cross_legs"
}

// Bonus represents a persisted bonus record.
type Bonus struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CrossID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount     decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	Currency   string          `gorm:"type:varchar(5);not null"`
	UnlockDate *time.Time
	Note       string `gorm:"type:text"`
}

// TableName specifies the table name for the Bonus model.
func (Bonus) TableName() string {
	return "cross_bonuses"
}

// Models lists every model, in dependency order, for AutoMigrate.
func Models() []any {
	return []any{&Wallet{}, &Transaction{}, &Cross{}, &Leg{}, &Bonus{}}
}
