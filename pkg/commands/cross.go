package commands

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Leg describes one side of a cross to open.
type Leg struct {
	Client       string
	ClientWallet string // defaults to Client
	Broker       string
	Platform     string
	Account      string
	Volume       decimal.Decimal
}

// Bonus is a broker incentive attached at open time.
type Bonus struct {
	Amount     decimal.Decimal
	Currency   string // defaults to the cross currency
	UnlockDate *time.Time
	Note       string
}

// OpenCross opens a hedge cross with both legs in one step.
type OpenCross struct {
	Name       string
	Pair       string
	Volume     decimal.Decimal
	Currency   string // defaults to the ledger currency
	TeamWallet string // defaults to the configured team wallet
	OpenedAt   time.Time
	Note       string
	Long       Leg
	Short      Leg
	Bonuses    []Bonus
	Operator   string
}

// CloseCross settles an active cross.
type CloseCross struct {
	CrossID           uuid.UUID
	FinalBalanceLong  decimal.Decimal
	FinalBalanceShort decimal.Decimal
	Winner            string
	Fee               decimal.Decimal
	Note              string
	Operator          string
}

// TransitionCross suspends or resumes a cross.
type TransitionCross struct {
	CrossID  uuid.UUID
	Note     string
	Operator string
}
