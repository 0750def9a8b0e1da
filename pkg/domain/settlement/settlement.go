// Package settlement computes the payout split of a closing cross.
//
// The winner's client wallet is credited with the winner leg's final balance
// minus any fee; the loser's client wallet is debited with the loser leg's
// final balance. The team wallet is the counterparty of both rows.
package settlement

import (
	"fmt"
	"time"

	"github.com/amirasaad/crossledger/pkg/domain"
	"github.com/amirasaad/crossledger/pkg/domain/cross"
	"github.com/amirasaad/crossledger/pkg/domain/ledger"
	"github.com/amirasaad/crossledger/pkg/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Input holds the operator supplied close values.
type Input struct {
	FinalBalanceLong  decimal.Decimal
	FinalBalanceShort decimal.Decimal
	Winner            cross.Side
	Fee               decimal.Decimal
}

// Outcome is the signed amount applied to each leg's client wallet.
type Outcome struct {
	DeltaLong  decimal.Decimal
	DeltaShort decimal.Decimal
}

// Delta returns the delta for side.
func (o Outcome) Delta(side cross.Side) decimal.Decimal {
	if side == cross.SideShort {
		return o.DeltaShort
	}
	return o.DeltaLong
}

// Validate checks the input without computing anything.
func (in Input) Validate(currency money.Code) error {
	if in.Winner != cross.SideLong && in.Winner != cross.SideShort {
		return fmt.Errorf("%w: winner leg must be long or short, got %q", domain.ErrValidation, in.Winner)
	}
	for name, v := range map[string]decimal.Decimal{
		"final long balance":  in.FinalBalanceLong,
		"final short balance": in.FinalBalanceShort,
		"fee":                 in.Fee,
	} {
		if v.IsNegative() {
			return fmt.Errorf("%w: %s must not be negative, got %s", domain.ErrInvalidBalance, name, v.String())
		}
		if _, err := money.New(v, currency); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrInvalidBalance, name, err)
		}
	}
	return nil
}

// Compute derives the deltas. It is a pure function.
func Compute(in Input) (Outcome, error) {
	if in.Winner != cross.SideLong && in.Winner != cross.SideShort {
		return Outcome{}, fmt.Errorf("%w: winner leg must be long or short, got %q", domain.ErrValidation, in.Winner)
	}
	if in.FinalBalanceLong.IsNegative() || in.FinalBalanceShort.IsNegative() {
		return Outcome{}, fmt.Errorf("%w: final balances must not be negative", domain.ErrInvalidBalance)
	}
	if in.Fee.IsNegative() {
		return Outcome{}, fmt.Errorf("%w: fee must not be negative", domain.ErrInvalidBalance)
	}

	winnerFinal, loserFinal := in.FinalBalanceLong, in.FinalBalanceShort
	if in.Winner == cross.SideShort {
		winnerFinal, loserFinal = in.FinalBalanceShort, in.FinalBalanceLong
	}
	credit := winnerFinal.Sub(in.Fee)
	if credit.IsNegative() {
		return Outcome{}, fmt.Errorf(
			"%w: fee %s exceeds winner credit %s",
			domain.ErrInvalidBalance,
			in.Fee.String(),
			winnerFinal.String(),
		)
	}
	debit := loserFinal.Neg()

	if in.Winner == cross.SideLong {
		return Outcome{DeltaLong: credit, DeltaShort: debit}, nil
	}
	return Outcome{DeltaLong: debit, DeltaShort: credit}, nil
}

// IdempotencyKey is the ledger key of the settlement row for one leg.
func IdempotencyKey(crossID uuid.UUID, side cross.Side) string {
	return fmt.Sprintf("cross:%s:close:%s", crossID, side)
}

// OpenMarkerKey is the ledger key of the open marker for one leg.
func OpenMarkerKey(crossID uuid.UUID, side cross.Side) string {
	return fmt.Sprintf("cross:%s:open:%s", crossID, side)
}

// Drafts builds exactly one cross_close draft per leg, long first.
// A positive delta moves funds team → client, a negative one client → team.
// A zero delta is still recorded as a zero amount marker.
func Drafts(c *cross.Cross, out Outcome, operator, note string) []ledger.Draft {
	id := c.ID
	drafts := make([]ledger.Draft, 0, 2)
	for _, leg := range c.Legs() {
		delta := out.Delta(leg.Side)
		d := ledger.Draft{
			Sender:         c.TeamWallet,
			Recipient:      leg.ClientWallet,
			Amount:         delta.Abs(),
			Currency:       c.Currency,
			Kind:           ledger.KindCrossClose,
			Note:           note,
			Operator:       operator,
			CrossID:        &id,
			IdempotencyKey: IdempotencyKey(c.ID, leg.Side),
		}
		if delta.IsNegative() {
			d.Sender, d.Recipient = leg.ClientWallet, c.TeamWallet
		}
		drafts = append(drafts, d)
	}
	return drafts
}

// OpenMarkers builds the two zero amount cross_open rows, long first.
func OpenMarkers(c *cross.Cross, operator string) []ledger.Draft {
	id := c.ID
	drafts := make([]ledger.Draft, 0, 2)
	for _, leg := range c.Legs() {
		drafts = append(drafts, ledger.Draft{
			Sender:    c.TeamWallet,
			Recipient: leg.ClientWallet,
			Amount:    decimal.Zero,
			Currency:  c.Currency,
			Kind:      ledger.KindCrossOpen,
			Note: fmt.Sprintf(
				"%s leg %s %s/%s/%s volume %s",
				leg.Side, c.Pair, leg.Broker, leg.Platform, leg.Account, leg.Volume.String(),
			),
			Operator:       operator,
			CrossID:        &id,
			IdempotencyKey: OpenMarkerKey(c.ID, leg.Side),
		})
	}
	return drafts
}

// Receipt is the auditable result of closing a cross.
type Receipt struct {
	CrossID           uuid.UUID
	Currency          money.Code
	Winner            cross.Side
	FinalBalanceLong  decimal.Decimal
	FinalBalanceShort decimal.Decimal
	Fee               decimal.Decimal
	DeltaLong         decimal.Decimal
	DeltaShort        decimal.Decimal
	LongWallet        string
	ShortWallet       string
	TeamWallet        string
	TransactionIDs    []uuid.UUID
	ClosedAt          time.Time
	ClosedBy          string
	Replayed          bool
}

// Rebuild reconstructs the receipt of a closed cross from its close record and
// its cross_close rows. The same inputs always yield the same receipt.
func Rebuild(c *cross.Cross, rows []*ledger.Transaction) (*Receipt, error) {
	if c.State != cross.StateClosed || c.Settlement == nil || c.ClosedAt == nil {
		return nil, fmt.Errorf("%w: cross %s is %s", domain.ErrInvalidTransition, c.ID, c.State)
	}
	s := c.Settlement
	out, err := Compute(Input{
		FinalBalanceLong:  s.FinalBalanceLong,
		FinalBalanceShort: s.FinalBalanceShort,
		Winner:            s.Winner,
		Fee:               s.Fee,
	})
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]uuid.UUID, len(rows))
	for _, tx := range rows {
		if tx.Kind == ledger.KindCrossClose && tx.ReversalOf == nil {
			byKey[tx.IdempotencyKey] = tx.ID
		}
	}
	ids := make([]uuid.UUID, 0, 2)
	for _, side := range []cross.Side{cross.SideLong, cross.SideShort} {
		if id, ok := byKey[IdempotencyKey(c.ID, side)]; ok {
			ids = append(ids, id)
		}
	}

	return &Receipt{
		CrossID:           c.ID,
		Currency:          c.Currency,
		Winner:            s.Winner,
		FinalBalanceLong:  s.FinalBalanceLong,
		FinalBalanceShort: s.FinalBalanceShort,
		Fee:               s.Fee,
		DeltaLong:         out.DeltaLong,
		DeltaShort:        out.DeltaShort,
		LongWallet:        c.Long.ClientWallet,
		ShortWallet:       c.Short.ClientWallet,
		TeamWallet:        c.TeamWallet,
		TransactionIDs:    ids,
		ClosedAt:          *c.ClosedAt,
		ClosedBy:          s.ClosedBy,
	}, nil
}
