package wallet

import (
	"fmt"
	"strings"
	"time"

	"github.com/amirasaad/crossledger/pkg/domain"
	"github.com/amirasaad/crossledger/pkg/money"
)

// SystemName is the synthetic counterparty used for manual corrections.
// It always resolves, is never stored and can never be created by an operator.
const SystemName = "System"

// MaxNameLength bounds wallet names.
const MaxNameLength = 64

// Kind classifies a wallet.
type Kind string

const (
	KindTeam         Kind = "team"
	KindCollaborator Kind = "collaborator"
	KindClient       Kind = "client"
)

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindTeam, KindCollaborator, KindClient:
		return true
	}
	return false
}

// Wallet is a named custodial balance holder.
//
// Invariants:
//   - Name is non-empty, trimmed and unique.
//   - Currency is a valid code.
//   - A wallet holds no balance field; balances are derived from the ledger.
type Wallet struct {
	Name      string
	Owner     string
	Kind      Kind
	Currency  money.Code
	Active    bool
	Note      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsSystem reports whether name refers to the synthetic System wallet.
func IsSystem(name string) bool {
	return name == SystemName
}

// System returns the synthetic System wallet for the given currency.
func System(currency money.Code) *Wallet {
	return &Wallet{
		Name:     SystemName,
		Owner:    SystemName,
		Kind:     KindTeam,
		Currency: currency,
		Active:   true,
	}
}

// AcceptsCurrency reports whether the wallet can hold c. System accepts anything.
func (w *Wallet) AcceptsCurrency(c money.Code) bool {
	return IsSystem(w.Name) || w.Currency == c
}

// CanEscrow reports whether the wallet may act as the team side of a cross.
func (w *Wallet) CanEscrow() bool {
	return w.Kind == KindTeam || w.Kind == KindCollaborator
}

// Builder provides a fluent API for constructing Wallet instances.
type Builder struct {
	name      string
	owner     string
	kind      Kind
	currency  money.Code
	active    bool
	note      string
	createdAt time.Time
	updatedAt time.Time
}

// New creates a new Builder with the default currency and the active flag set.
func New() *Builder {
	now := time.Now().UTC()
	return &Builder{
		currency:  money.DefaultCode,
		active:    true,
		createdAt: now,
		updatedAt: now,
	}
}

func (b *Builder) WithName(name string) *Builder {
	b.name = strings.TrimSpace(name)
	return b
}

func (b *Builder) WithOwner(owner string) *Builder {
	b.owner = strings.TrimSpace(owner)
	return b
}

func (b *Builder) WithKind(kind Kind) *Builder {
	b.kind = kind
	return b
}

func (b *Builder) WithCurrency(code money.Code) *Builder {
	b.currency = code
	return b
}

func (b *Builder) WithNote(note string) *Builder {
	b.note = note
	return b
}

// WithActive is for hydrating a stored wallet.
func (b *Builder) WithActive(active bool) *Builder {
	b.active = active
	return b
}

// WithTimestamps is for hydrating a stored wallet.
func (b *Builder) WithTimestamps(createdAt, updatedAt time.Time) *Builder {
	b.createdAt = createdAt
	b.updatedAt = updatedAt
	return b
}

// Build validates the wallet invariants.
func (b *Builder) Build() (*Wallet, error) {
	if b.name == "" {
		return nil, fmt.Errorf("%w: wallet name is required", domain.ErrValidation)
	}
	if len(b.name) > MaxNameLength {
		return nil, fmt.Errorf("%w: wallet name exceeds %d characters", domain.ErrValidation, MaxNameLength)
	}
	if IsSystem(b.name) {
		return nil, fmt.Errorf("%w: %q is reserved", domain.ErrDuplicateName, SystemName)
	}
	if !b.kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown wallet kind %q", domain.ErrValidation, b.kind)
	}
	if !b.currency.IsValid() {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, money.ErrInvalidCurrency)
	}
	owner := b.owner
	if owner == "" {
		owner = b.name
	}
	return &Wallet{
		Name:      b.name,
		Owner:     owner,
		Kind:      b.kind,
		Currency:  b.currency,
		Active:    b.active,
		Note:      b.note,
		CreatedAt: b.createdAt,
		UpdatedAt: b.updatedAt,
	}, nil
}
