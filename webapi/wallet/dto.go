package wallet

import (
	"time"

	domainwallet "github.com/amirasaad/crossledger/pkg/domain/wallet"
	ledgersvc "github.com/amirasaad/crossledger/pkg/service/ledger"
)

//revive:disable

// CreateWalletRequest represents the request body for registering a wallet.
type CreateWalletRequest struct {
	Name     string `json:"name" validate:"required,max=64"`
	Owner    string `json:"owner" validate:"omitempty,max=128"`
	Kind     string `json:"kind" validate:"required,oneof=team collaborator client Team Collaborator Client"`
	Currency string `json:"currency" validate:"omitempty,min=3,max=5,alphanum"`
	Note     string `json:"note" validate:"omitempty,max=1024"`
}

// WalletDTO is the API representation of a wallet.
type WalletDTO struct {
	Name      string    `json:"name"`
	Owner     string    `json:"owner,omitempty"`
	Kind      string    `json:"kind"`
	Currency  string    `json:"currency"`
	Active    bool      `json:"active"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BalanceDTO is the derived balance of one wallet. Amounts are decimal strings.
type BalanceDTO struct {
	Wallet   string `json:"wallet"`
	Kind     string `json:"kind,omitempty"`
	Active   bool   `json:"active"`
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

func toWalletDTO(w *domainwallet.Wallet) WalletDTO {
	return WalletDTO{
		Name:      w.Name,
		Owner:     w.Owner,
		Kind:      string(w.Kind),
		Currency:  string(w.Currency),
		Active:    w.Active,
		Note:      w.Note,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

func toBalanceDTO(b ledgersvc.Balance) BalanceDTO {
	return BalanceDTO{
		Wallet:   b.Wallet,
		Kind:     string(b.Kind),
		Active:   b.Active,
		Balance:  b.Balance.StringAmount(),
		Currency: string(b.Balance.Currency()),
	}
}
