package transaction

import (
	"strings"
	"time"

	"github.com/amirasaad/crossledger/pkg/domain/ledger"
	"github.com/amirasaad/crossledger/pkg/money"
	"github.com/shopspring/decimal"
)

//revive:disable

// AppendRequest represents the request body for appending a ledger row.
// Cross bookkeeping kinds are written by the cross endpoints only.
type AppendRequest struct {
	Sender      string           `json:"sender" validate:"required,max=64"`
	Recipient   string           `json:"recipient" validate:"required,max=64"`
	Amount      decimal.Decimal  `json:"amount" swaggertype:"string"`
	Currency    string           `json:"currency" validate:"required,min=3,max=5,alpha"`
	Kind        string           `json:"kind" validate:"required,oneof=deposit withdrawal transfer correction"`
	Pending     bool             `json:"pending"`
	Fee         *decimal.Decimal `json:"fee,omitempty" swaggertype:"string"`
	ExternalRef string           `json:"external_ref" validate:"omitempty,max=128"`
	Note        string           `json:"note" validate:"omitempty,max=1024"`
}

// ReverseRequest carries the optional note of a reversal.
type ReverseRequest struct {
	Note string `json:"note" validate:"omitempty,max=1024"`
}

// TransactionDTO is the API representation of a ledger row. Amounts are decimal strings.
type TransactionDTO struct {
	ID             string    `json:"id"`
	Sender         string    `json:"sender"`
	Recipient      string    `json:"recipient"`
	Amount         string    `json:"amount"`
	Currency       string    `json:"currency"`
	Kind           string    `json:"kind"`
	Status         string    `json:"status"`
	Fee            string    `json:"fee,omitempty"`
	ExternalRef    string    `json:"external_ref,omitempty"`
	Note           string    `json:"note,omitempty"`
	Operator       string    `json:"operator,omitempty"`
	CrossID        string    `json:"cross_id,omitempty"`
	ReversalOf     string    `json:"reversal_of,omitempty"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CorrectionDTO pairs the reversal with its corrected entry.
type CorrectionDTO struct {
	Reversal TransactionDTO `json:"reversal"`
	Entry    TransactionDTO `json:"entry"`
}

// Draft converts the request into a ledger draft.
func (r AppendRequest) Draft(operator, key string) ledger.Draft {
	return ledger.Draft{
		Sender:         r.Sender,
		Recipient:      r.Recipient,
		Amount:         r.Amount,
		Currency:       money.Code(strings.ToUpper(strings.TrimSpace(r.Currency))),
		Kind:           ledger.Kind(r.Kind),
		Pending:        r.Pending,
		Fee:            r.Fee,
		ExternalRef:    r.ExternalRef,
		Note:           r.Note,
		Operator:       operator,
		IdempotencyKey: key,
	}
}

// ToDTO maps a ledger row for the API.
func ToDTO(tx *ledger.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:             tx.ID.String(),
		Sender:         tx.Sender,
		Recipient:      tx.Recipient,
		Amount:         tx.Money().StringAmount(),
		Currency:       string(tx.Currency),
		Kind:           string(tx.Kind),
		Status:         string(tx.Status),
		ExternalRef:    tx.ExternalRef,
		Note:           tx.Note,
		Operator:       tx.Operator,
		IdempotencyKey: tx.IdempotencyKey,
		CreatedAt:      tx.CreatedAt,
	}
	if tx.Fee != nil {
		dto.Fee = tx.Fee.StringFixed(tx.Currency.Decimals())
	}
	if tx.CrossID != nil {
		dto.CrossID = tx.CrossID.String()
	}
	if tx.ReversalOf != nil {
		dto.ReversalOf = tx.ReversalOf.String()
	}
	return dto
}

// ToDTOs maps a listing for the API.
func ToDTOs(txs []*ledger.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		dtos = append(dtos, ToDTO(tx))
	}
	return dtos
}
