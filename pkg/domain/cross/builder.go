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

// Builder provides a fluent API for constructing a new Cross.
type Builder struct {
	id         uuid.UUID
	name       string
	pair       string
	volume     decimal.Decimal
	currency   money.Code
	teamWallet string
	openedAt   time.Time
	note       string
	createdBy  string
	long       *Leg
	short      *Leg
	bonuses    []Bonus
}

// New creates a Builder with a fresh id and the default currency.
func New() *Builder {
	return &Builder{
		id:       uuid.New(),
		currency: money.DefaultCode,
	}
}

func (b *Builder) WithID(id uuid.UUID) *Builder {
	b.id = id
	return b
}

func (b *Builder) WithName(name string) *Builder {
	b.name = strings.TrimSpace(name)
	return b
}

func (b *Builder) WithPair(pair string) *Builder {
	b.pair = strings.ToUpper(strings.TrimSpace(pair))
	return b
}

func (b *Builder) WithVolume(v decimal.Decimal) *Builder {
	b.volume = v
	return b
}

func (b *Builder) WithCurrency(c money.Code) *Builder {
	b.currency = c
	return b
}

// WithTeamWallet sets the escrow wallet that is the counterparty of every settlement row.
func (b *Builder) WithTeamWallet(name string) *Builder {
	b.teamWallet = strings.TrimSpace(name)
	return b
}

func (b *Builder) WithOpenedAt(t time.Time) *Builder {
	b.openedAt = t
	return b
}

func (b *Builder) WithNote(note string) *Builder {
	b.note = note
	return b
}

func (b *Builder) WithCreatedBy(operator string) *Builder {
	b.createdBy = operator
	return b
}

// WithLeg sets the leg for leg.Side. Setting the same side twice keeps the last one.
func (b *Builder) WithLeg(leg Leg) *Builder {
	leg.Client = strings.TrimSpace(leg.Client)
	leg.ClientWallet = strings.TrimSpace(leg.ClientWallet)
	if leg.ClientWallet == "" {
		leg.ClientWallet = leg.Client
	}
	if leg.ID == uuid.Nil {
		leg.ID = uuid.New()
	}
	switch leg.Side {
	case SideLong:
		b.long = &leg
	case SideShort:
		b.short = &leg
	}
	return b
}

func (b *Builder) WithBonus(bonus Bonus) *Builder {
	if bonus.ID == uuid.Nil {
		bonus.ID = uuid.New()
	}
	if bonus.Currency == "" {
		bonus.Currency = b.currency
	}
	b.bonuses = append(b.bonuses, bonus)
	return b
}

// Build validates every invariant of a freshly opened cross.
func (b *Builder) Build(now time.Time) (*Cross, error) {
	if b.name == "" {
		return nil, fmt.Errorf("%w: cross name is required", domain.ErrValidation)
	}
	if b.pair == "" {
		return nil, fmt.Errorf("%w: trading pair is required", domain.ErrValidation)
	}
	if !b.volume.IsPositive() {
		return nil, fmt.Errorf("%w: cross volume must be positive", domain.ErrValidation)
	}
	if !b.currency.IsValid() {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, money.ErrInvalidCurrency)
	}
	if b.teamWallet == "" {
		return nil, fmt.Errorf("%w: team wallet is required", domain.ErrUnknownWallet)
	}
	if b.long == nil || b.short == nil {
		return nil, fmt.Errorf("%w: exactly one long and one short leg are required", domain.ErrInvalidLeg)
	}
	for _, leg := range []*Leg{b.long, b.short} {
		if leg.Client == "" && leg.ClientWallet == "" {
			return nil, fmt.Errorf("%w: %s leg has no client", domain.ErrInvalidLeg, leg.Side)
		}
		if !leg.Volume.IsPositive() {
			return nil, fmt.Errorf("%w: %s leg volume must be positive", domain.ErrInvalidLeg, leg.Side)
		}
	}
	if sameClient(b.long, b.short) {
		return nil, domain.ErrSameClientBothLegs
	}
	for _, leg := range []*Leg{b.long, b.short} {
		if leg.ClientWallet == b.teamWallet {
			return nil, fmt.Errorf("%w: %s leg wallet is the team wallet", domain.ErrSelfTransfer, leg.Side)
		}
	}
	for _, bonus := range b.bonuses {
		if !bonus.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: bonus amount must be positive", domain.ErrInvalidAmount)
		}
		if _, err := money.New(bonus.Amount, bonus.Currency); err != nil {
			return nil, fmt.Errorf("%w: bonus: %v", domain.ErrInvalidAmount, err)
		}
	}
	openedAt := b.openedAt
	if openedAt.IsZero() {
		openedAt = now
	}
	return &Cross{
		ID:         b.id,
		Name:       b.name,
		Pair:       b.pair,
		Volume:     b.volume,
		Currency:   b.currency,
		TeamWallet: b.teamWallet,
		OpenedAt:   openedAt,
		State:      StateActive,
		Note:       b.note,
		Version:    1,
		Long:       *b.long,
		Short:      *b.short,
		Bonuses:    b.bonuses,
		CreatedBy:  b.createdBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func sameClient(a, b *Leg) bool {
	if a.Client != "" && strings.EqualFold(a.Client, b.Client) {
		return true
	}
	return a.ClientWallet == b.ClientWallet
}
