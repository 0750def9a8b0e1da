// Package cross models a hedge cross: a paired long/short position across
// two client broker accounts, opened to unlock a broker bonus.
//
// State machine:
//
//	active ⇄ suspended
//	active → closed (terminal)
package cross

import (
	"fmt"
	"strings"
	"time"

	"github.com/amirasaad/crossledger/pkg/domain"
	"github.com/amirasaad/crossledger/pkg/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// State of a cross.
type State string

const (
	StateActive    State = "active"
	StateSuspended State = "suspended"
	StateClosed    State = "closed"
)

// IsValid reports whether s is a known state.
func (s State) IsValid() bool {
	return s == StateActive || s == StateSuspended || s == StateClosed
}

// Side identifies a leg.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// ParseSide accepts "long" or "short" in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideLong:
		return SideLong, nil
	case SideShort:
		return SideShort, nil
	}
	return "", fmt.Errorf("%w: winner leg must be long or short, got %q", domain.ErrValidation, s)
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// Leg is one side of a cross, tied to one client account.
type Leg struct {
	ID           uuid.UUID
	Side         Side
	Client       string
	ClientWallet string
	Broker       string
	Platform     string
	Account      string
	Volume       decimal.Decimal
}

// Bonus is a broker incentive attached to a cross. Bonuses are records only,
// they do not move ledger funds.
type Bonus struct {
	ID         uuid.UUID
	Amount     decimal.Decimal
	Currency   money.Code
	UnlockDate *time.Time
	Note       string
}

// Settlement is the close record kept on the cross row.
type Settlement struct {
	Winner            Side
	FinalBalanceLong  decimal.Decimal
	FinalBalanceShort decimal.Decimal
	Fee               decimal.Decimal
	ClosedBy          string
}

// Cross is the aggregate root for a hedge cross.
//
// Invariants:
//   - Exactly one long and one short leg, with different clients.
//   - Closed is terminal; a closed cross carries its Settlement.
//   - Version increases on every state change and guards conditional updates.
type Cross struct {
	ID         uuid.UUID
	Name       string
	Pair       string
	Volume     decimal.Decimal
	Currency   money.Code
	TeamWallet string
	OpenedAt   time.Time
	ClosedAt   *time.Time
	State      State
	Note       string
	Version    int64
	Long       Leg
	Short      Leg
	Bonuses    []Bonus
	Settlement *Settlement
	CreatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Leg returns the leg for side.
func (c *Cross) Leg(side Side) Leg {
	if side == SideShort {
		return c.Short
	}
	return c.Long
}

// Legs returns the long leg followed by the short leg.
func (c *Cross) Legs() []Leg {
	return []Leg{c.Long, c.Short}
}

// ReferencesWallet reports whether the cross names the wallet on either leg or as team wallet.
func (c *Cross) ReferencesWallet(name string) bool {
	return c.TeamWallet == name || c.Long.ClientWallet == name || c.Short.ClientWallet == name
}

// Suspend moves an active cross to suspended.
func (c *Cross) Suspend(at time.Time, operator, note string) error {
	if c.State != StateActive {
		return fmt.Errorf("%w: cannot suspend a %s cross", domain.ErrInvalidTransition, c.State)
	}
	c.transition(StateSuspended, at, operator, note)
	return nil
}

// Resume moves a suspended cross back to active.
func (c *Cross) Resume(at time.Time, operator, note string) error {
	if c.State != StateSuspended {
		return fmt.Errorf("%w: cannot resume a %s cross", domain.ErrInvalidTransition, c.State)
	}
	c.transition(StateActive, at, operator, note)
	return nil
}

// Close records the settlement and moves the cross to closed.
// Both "already closed" and "suspended" are ErrNotActive.
func (c *Cross) Close(s Settlement, at time.Time, note string) error {
	if c.State != StateActive {
		return fmt.Errorf("%w: cross %s is %s", domain.ErrNotActive, c.ID, c.State)
	}
	closedAt := at
	c.Settlement = &s
	c.ClosedAt = &closedAt
	c.transition(StateClosed, at, s.ClosedBy, note)
	return nil
}

func (c *Cross) transition(to State, at time.Time, operator, note string) {
	c.State = to
	c.Version++
	c.UpdatedAt = at
	c.Note = AppendNote(c.Note, at, operator, note)
}

// AppendNote adds an attributed line to a free-text note.
func AppendNote(existing string, at time.Time, operator, note string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return existing
	}
	if operator == "" {
		operator = "unknown"
	}
	line := fmt.Sprintf("[%s %s] %s", at.UTC().Format(time.RFC3339), operator, note)
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}
