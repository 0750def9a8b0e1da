package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of an event in the system.
type EventType string

// Event type constants
const (
	// Wallet events
	EventTypeWalletCreated     EventType = "Wallet.Created"
	EventTypeWalletDeactivated EventType = "Wallet.Deactivated"
	EventTypeWalletReactivated EventType = "Wallet.Reactivated"
	EventTypeWalletDeleted     EventType = "Wallet.Deleted"

	// Ledger events
	EventTypeTransactionAppended      EventType = "Transaction.Appended"
	EventTypeTransactionStatusChanged EventType = "Transaction.StatusChanged"
	EventTypeTransactionPurged        EventType = "Transaction.Purged"

	// Cross events
	EventTypeCrossOpened    EventType = "Cross.Opened"
	EventTypeCrossSuspended EventType = "Cross.Suspended"
	EventTypeCrossResumed   EventType = "Cross.Resumed"
	EventTypeCrossClosed    EventType = "Cross.Closed"
	EventTypeCrossDeleted   EventType = "Cross.Deleted"
)

func (t EventType) String() string { return string(t) }

// Event is implemented by every domain event.
type Event interface {
	Type() string
}

// Meta carries the fields common to every event.
type Meta struct {
	Operator  string    `json:"operator,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMeta stamps an event with the operator and the current time.
func NewMeta(operator string) Meta {
	return Meta{Operator: operator, Timestamp: time.Now().UTC()}
}

// WalletEvent covers the wallet lifecycle. Kind says which one.
type WalletEvent struct {
	Meta
	Kind     EventType `json:"kind"`
	Name     string    `json:"name"`
	Owner    string    `json:"owner,omitempty"`
	Wallet   string    `json:"wallet_kind,omitempty"`
	Currency string    `json:"currency,omitempty"`
}

func (e *WalletEvent) Type() string { return e.Kind.String() }

// TransactionAppended is emitted after a ledger row is committed.
type TransactionAppended struct {
	Meta
	ID        uuid.UUID  `json:"id"`
	Sender    string     `json:"sender"`
	Recipient string     `json:"recipient"`
	Amount    string     `json:"amount"`
	Currency  string     `json:"currency"`
	Kind      string     `json:"kind"`
	Status    string     `json:"status"`
	CrossID   *uuid.UUID `json:"cross_id,omitempty"`
}

func (e *TransactionAppended) Type() string { return EventTypeTransactionAppended.String() }

// TransactionStatusChanged is emitted when a pending row settles.
type TransactionStatusChanged struct {
	Meta
	ID   uuid.UUID `json:"id"`
	From string    `json:"from"`
	To   string    `json:"to"`
}

func (e *TransactionStatusChanged) Type() string { return EventTypeTransactionStatusChanged.String() }

// TransactionPurged is emitted when a non-completed row is removed.
type TransactionPurged struct {
	Meta
	ID uuid.UUID `json:"id"`
}

func (e *TransactionPurged) Type() string { return EventTypeTransactionPurged.String() }

// CrossEvent covers open, suspend, resume and delete. Kind says which one.
type CrossEvent struct {
	Meta
	Kind        EventType `json:"kind"`
	CrossID     uuid.UUID `json:"cross_id"`
	Name        string    `json:"name"`
	Pair        string    `json:"pair,omitempty"`
	LongWallet  string    `json:"long_wallet,omitempty"`
	ShortWallet string    `json:"short_wallet,omitempty"`
}

func (e *CrossEvent) Type() string { return e.Kind.String() }

// CrossClosed is emitted once per cross, after the settlement commit.
type CrossClosed struct {
	Meta
	CrossID    uuid.UUID   `json:"cross_id"`
	Winner     string      `json:"winner"`
	DeltaLong  string      `json:"delta_long"`
	DeltaShort string      `json:"delta_short"`
	Fee        string      `json:"fee"`
	Currency   string      `json:"currency"`
	TxIDs      []uuid.UUID `json:"transaction_ids"`
}

func (e *CrossClosed) Type() string { return EventTypeCrossClosed.String() }

// EventTypes maps a wire type to a constructor, used by bus transports that decode payloads.
var EventTypes = map[string]func() Event{
	EventTypeWalletCreated.String():            func() Event { return &WalletEvent{} },
	EventTypeWalletDeactivated.String():        func() Event { return &WalletEvent{} },
	EventTypeWalletReactivated.String():        func() Event { return &WalletEvent{} },
	EventTypeWalletDeleted.String():            func() Event { return &WalletEvent{} },
	EventTypeTransactionAppended.String():      func() Event { return &TransactionAppended{} },
	EventTypeTransactionStatusChanged.String(): func() Event { return &TransactionStatusChanged{} },
	EventTypeTransactionPurged.String():        func() Event { return &TransactionPurged{} },
	EventTypeCrossOpened.String():              func() Event { return &CrossEvent{} },
	EventTypeCrossSuspended.String():           func() Event { return &CrossEvent{} },
	EventTypeCrossResumed.String():             func() Event { return &CrossEvent{} },
	EventTypeCrossClosed.String():              func() Event { return &CrossClosed{} },
	EventTypeCrossDeleted.String():             func() Event { return &CrossEvent{} },
}
