package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/amirasaad/crossledger/pkg/domain"
	"github.com/amirasaad/crossledger/pkg/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxIdempotencyKeyLength bounds caller supplied idempotency keys.
const MaxIdempotencyKeyLength = 128

// Kind is the business type of a ledger row.
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
	KindTransfer   Kind = "transfer"
	KindCrossOpen  Kind = "cross_open"
	KindCrossClose Kind = "cross_close"
	KindCorrection Kind = "correction"
)

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindDeposit, KindWithdrawal, KindTransfer, KindCrossOpen, KindCrossClose, KindCorrection:
		return true
	}
	return false
}

// AllowsZero reports whether rows of this kind may carry a zero amount.
// Cross bookkeeping rows are markers; a zero settlement delta is still recorded.
func (k Kind) AllowsZero() bool {
	return k == KindCrossOpen || k == KindCrossClose
}

// Status of a ledger row. Only completed rows count towards balances.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether a row may move from s to next.
// Only pending rows move; every other status is final.
func (s Status) CanTransitionTo(next Status) bool {
	if s != StatusPending {
		return false
	}
	return next == StatusCompleted || next == StatusFailed || next == StatusCancelled
}

// Transaction is one immutable ledger row.
type Transaction struct {
	ID             uuid.UUID
	Sender         string
	Recipient      string
	Amount         decimal.Decimal
	Currency       money.Code
	Kind           Kind
	Status         Status
	Fee            *decimal.Decimal // network fee, informational only
	ExternalRef    string
	Note           string
	Operator       string
	CrossID        *uuid.UUID
	ReversalOf     *uuid.UUID
	IdempotencyKey string
	CreatedAt      time.Time
}

// Money returns the amount as a Money value.
func (t *Transaction) Money() money.Money {
	m, err := money.New(t.Amount, t.Currency)
	if err != nil {
		// Stored rows were validated on append; fall back to the raw value.
		return money.Zero(t.Currency)
	}
	return m
}

// Involves reports whether the wallet is sender or recipient.
func (t *Transaction) Involves(walletName string) bool {
	return t.Sender == walletName || t.Recipient == walletName
}

// Contribution is the signed effect of t on the wallet's balance:
// +amount as recipient, -amount as sender, zero when not completed.
func (t *Transaction) Contribution(walletName string) decimal.Decimal {
	if t.Status != StatusCompleted {
		return decimal.Zero
	}
	switch walletName {
	case t.Recipient:
		return t.Amount
	case t.Sender:
		return t.Amount.Neg()
	}
	return decimal.Zero
}

// Draft is an unvalidated request to append a ledger row.
type Draft struct {
	Sender         string
	Recipient      string
	Amount         decimal.Decimal
	Currency       money.Code
	Kind           Kind
	Pending        bool
	Fee            *decimal.Decimal
	ExternalRef    string
	Note           string
	Operator       string
	CrossID        *uuid.UUID
	ReversalOf     *uuid.UUID
	IdempotencyKey string
}

// Normalize trims free-text identifiers in place.
func (d *Draft) Normalize() {
	d.Sender = strings.TrimSpace(d.Sender)
	d.Recipient = strings.TrimSpace(d.Recipient)
	d.IdempotencyKey = strings.TrimSpace(d.IdempotencyKey)
	d.ExternalRef = strings.TrimSpace(d.ExternalRef)
}

// Validate checks the invariants that need no store lookups.
// Wallet existence and currency checks belong to the writer.
func (d Draft) Validate() error {
	if !d.Kind.IsValid() {
		return fmt.Errorf("%w: unknown transaction kind %q", domain.ErrValidation, d.Kind)
	}
	if d.Amount.IsNegative() || (d.Amount.IsZero() && !d.Kind.AllowsZero()) {
		return fmt.Errorf("%w: got %s", domain.ErrInvalidAmount, d.Amount.String())
	}
	if !d.Currency.IsValid() {
		return fmt.Errorf("%w: %v", domain.ErrValidation, money.ErrInvalidCurrency)
	}
	if _, err := money.New(d.Amount, d.Currency); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidAmount, err)
	}
	if d.Fee != nil {
		if d.Fee.IsNegative() {
			return fmt.Errorf("%w: fee must not be negative", domain.ErrInvalidAmount)
		}
		if _, err := money.New(*d.Fee, d.Currency); err != nil {
			return fmt.Errorf("%w: fee: %v", domain.ErrInvalidAmount, err)
		}
	}
	if d.Sender == "" || d.Recipient == "" {
		return fmt.Errorf("%w: sender and recipient are required", domain.ErrUnknownWallet)
	}
	if d.Sender == d.Recipient {
		return domain.ErrSelfTransfer
	}
	if len(d.IdempotencyKey) > MaxIdempotencyKeyLength {
		return fmt.Errorf("%w: idempotency key exceeds %d characters", domain.ErrValidation, MaxIdempotencyKeyLength)
	}
	if d.Kind == KindCorrection && d.ReversalOf == nil && d.Note == "" {
		return fmt.Errorf("%w: a correction needs a note or a reversed transaction", domain.ErrValidation)
	}
	return nil
}

// Status returns the status the row is created with.
func (d Draft) Status() Status {
	if d.Pending {
		return StatusPending
	}
	return StatusCompleted
}

// Build turns a validated draft into a row.
func (d Draft) Build(id uuid.UUID, createdAt time.Time) *Transaction {
	return &Transaction{
		ID:             id,
		Sender:         d.Sender,
		Recipient:      d.Recipient,
		Amount:         d.Amount,
		Currency:       d.Currency,
		Kind:           d.Kind,
		Status:         d.Status(),
		Fee:            d.Fee,
		ExternalRef:    d.ExternalRef,
		Note:           d.Note,
		Operator:       d.Operator,
		CrossID:        d.CrossID,
		ReversalOf:     d.ReversalOf,
		IdempotencyKey: d.IdempotencyKey,
		CreatedAt:      createdAt,
	}
}

// SamePayload reports whether t was produced from an equivalent draft.
// Used to tell a genuine retry from a reused idempotency key.
func (d Draft) SamePayload(t *Transaction) bool {
	return t.Sender == d.Sender &&
		t.Recipient == d.Recipient &&
		t.Amount.Equal(d.Amount) &&
		t.Currency == d.Currency &&
		t.Kind == d.Kind
}

// Reversal builds the compensating draft for t: same amount, sides swapped.
func Reversal(t *Transaction, operator, note, key string) Draft {
	id := t.ID
	if note == "" {
		note = "reversal of " + t.ID.String()
	}
	return Draft{
		Sender:         t.Recipient,
		Recipient:      t.Sender,
		Amount:         t.Amount,
		Currency:       t.Currency,
		Kind:           KindCorrection,
		Note:           note,
		Operator:       operator,
		CrossID:        t.CrossID,
		ReversalOf:     &id,
		IdempotencyKey: key,
	}
}
