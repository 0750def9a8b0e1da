package cross

import (
	"time"

	"github.com/amirasaad/crossledger/pkg/commands"
	domaincross "github.com/amirasaad/crossledger/pkg/domain/cross"
	"github.com/amirasaad/crossledger/pkg/domain/settlement"
	"github.com/shopspring/decimal"
)

//revive:disable

// LegRequest describes one side of a cross to open.
type LegRequest struct {
	Client       string          `json:"client" validate:"required,max=128"`
	ClientWallet string          `json:"client_wallet" validate:"omitempty,max=64"`
	Broker       string          `json:"broker" validate:"omitempty,max=128"`
	Platform     string          `json:"platform" validate:"omitempty,max=64"`
	Account      string          `json:"account" validate:"omitempty,max=64"`
	Volume       decimal.Decimal `json:"volume" swaggertype:"string"`
}

// BonusRequest is a broker incentive recorded with the cross.
type BonusRequest struct {
	Amount     decimal.Decimal `json:"amount" swaggertype:"string"`
	Currency   string          `json:"currency" validate:"omitempty,min=3,max=5,alpha"`
	UnlockDate *time.Time      `json:"unlock_date,omitempty"`
	Note       string          `json:"note" validate:"omitempty,max=1024"`
}

// OpenCrossRequest represents the request body for opening a cross.
type OpenCrossRequest struct {
	Name       string          `json:"name" validate:"required,max=128"`
	Pair       string          `json:"pair" validate:"required,max=32"`
	Volume     decimal.Decimal `json:"volume" swaggertype:"string"`
	Currency   string          `json:"currency" validate:"omitempty,min=3,max=5,alpha"`
	TeamWallet string          `json:"team_wallet" validate:"omitempty,max=64"`
	OpenedAt   *time.Time      `json:"opened_at,omitempty"`
	Note       string          `json:"note" validate:"omitempty,max=1024"`
	Long       LegRequest      `json:"long"`
	Short      LegRequest      `json:"short"`
	Bonuses    []BonusRequest  `json:"bonuses" validate:"omitempty,dive"`
}

// TransitionRequest carries the note of a suspend or resume.
type TransitionRequest struct {
	Note string `json:"note" validate:"omitempty,max=1024"`
}

// CloseCrossRequest represents the request body for settling a cross.
type CloseCrossRequest struct {
	FinalBalanceLong  decimal.Decimal `json:"final_balance_long" swaggertype:"string"`
	FinalBalanceShort decimal.Decimal `json:"final_balance_short" swaggertype:"string"`
	Winner            string          `json:"winner" validate:"required"`
	Fee               decimal.Decimal `json:"fee" swaggertype:"string"`
	Note              string          `json:"note" validate:"omitempty,max=1024"`
}

// LegDTO is the API representation of a leg.
type LegDTO struct {
	ID           string `json:"id"`
	Side         string `json:"side"`
	Client       string `json:"client"`
	ClientWallet string `json:"client_wallet"`
	Broker       string `json:"broker,omitempty"`
	Platform     string `json:"platform,omitempty"`
	Account      string `json:"account,omitempty"`
	Volume       string `json:"volume"`
}

// BonusDTO is the API representation of a bonus record.
type BonusDTO struct {
	ID         string     `json:"id"`
	Amount     string     `json:"amount"`
	Currency   string     `json:"currency"`
	UnlockDate *time.Time `json:"unlock_date,omitempty"`
	Note       string     `json:"note,omitempty"`
}

// SettlementDTO is the close record of a closed cross.
type SettlementDTO struct {
	Winner            string `json:"winner"`
	FinalBalanceLong  string `json:"final_balance_long"`
	FinalBalanceShort string `json:"final_balance_short"`
	Fee               string `json:"fee"`
	ClosedBy          string `json:"closed_by,omitempty"`
}

// CrossDTO is the API representation of a cross.
type CrossDTO struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Pair       string         `json:"pair"`
	Volume     string         `json:"volume"`
	Currency   string         `json:"currency"`
	TeamWallet string         `json:"team_wallet"`
	State      string         `json:"state"`
	Version    int64          `json:"version"`
	OpenedAt   time.Time      `json:"opened_at"`
	ClosedAt   *time.Time     `json:"closed_at,omitempty"`
	Note       string         `json:"note,omitempty"`
	Long       LegDTO         `json:"long"`
	Short      LegDTO         `json:"short"`
	Bonuses    []BonusDTO     `json:"bonuses"`
	Settlement *SettlementDTO `json:"settlement,omitempty"`
	CreatedBy  string         `json:"created_by,omitempty"`
}

// ReceiptDTO is the auditable result of a close.
type ReceiptDTO struct {
	CrossID           string    `json:"cross_id"`
	Currency          string    `json:"currency"`
	Winner            string    `json:"winner"`
	FinalBalanceLong  string    `json:"final_balance_long"`
	FinalBalanceShort string    `json:"final_balance_short"`
	Fee               string    `json:"fee"`
	DeltaLong         string    `json:"delta_long"`
	DeltaShort        string    `json:"delta_short"`
	LongWallet        string    `json:"long_wallet"`
	ShortWallet       string    `json:"short_wallet"`
	TeamWallet        string    `json:"team_wallet"`
	TransactionIDs    []string  `json:"transaction_ids"`
	ClosedAt          time.Time `json:"closed_at"`
	ClosedBy          string    `json:"closed_by,omitempty"`
	Replayed          bool      `json:"replayed"`
}

func (r OpenCrossRequest) command(operator string) commands.OpenCross {
	cmd := commands.OpenCross{
		Name:       r.Name,
		Pair:       r.Pair,
		Volume:     r.Volume,
		Currency:   r.Currency,
		TeamWallet: r.TeamWallet,
		Note:       r.Note,
		Long:       r.Long.command(),
		Short:      r.Short.command(),
		Operator:   operator,
	}
	if r.OpenedAt != nil {
		cmd.OpenedAt = r.OpenedAt.UTC()
	}
	for _, b := range r.Bonuses {
		cmd.Bonuses = append(cmd.Bonuses, commands.Bonus{
			Amount:     b.Amount,
			Currency:   b.Currency,
			UnlockDate: b.UnlockDate,
			Note:       b.Note,
		})
	}
	return cmd
}

func (l LegRequest) command() commands.Leg {
	return commands.Leg{
		Client:       l.Client,
		ClientWallet: l.ClientWallet,
		Broker:       l.Broker,
		Platform:     l.Platform,
		Account:      l.Account,
		Volume:       l.Volume,
	}
}

func toLegDTO(l domaincross.Leg) LegDTO {
	return LegDTO{
		ID:           l.ID.String(),
		Side:         string(l.Side),
		Client:       l.Client,
		ClientWallet: l.ClientWallet,
		Broker:       l.Broker,
		Platform:     l.Platform,
		Account:      l.Account,
		Volume:       l.Volume.String(),
	}
}

func toCrossDTO(c *domaincross.Cross) CrossDTO {
	places := c.Currency.Decimals()
	dto := CrossDTO{
		ID:         c.ID.String(),
		Name:       c.Name,
		Pair:       c.Pair,
		Volume:     c.Volume.String(),
		Currency:   string(c.Currency),
		TeamWallet: c.TeamWallet,
		State:      string(c.State),
		Version:    c.Version,
		OpenedAt:   c.OpenedAt,
		ClosedAt:   c.ClosedAt,
		Note:       c.Note,
		Long:       toLegDTO(c.Long),
		Short:      toLegDTO(c.Short),
		Bonuses:    make([]BonusDTO, 0, len(c.Bonuses)),
		CreatedBy:  c.CreatedBy,
	}
	for _, b := range c.Bonuses {
		dto.Bonuses = append(dto.Bonuses, BonusDTO{
			ID:         b.ID.String(),
			Amount:     b.Amount.StringFixed(b.Currency.Decimals()),
			Currency:   string(b.Currency),
			UnlockDate: b.UnlockDate,
			Note:       b.Note,
		})
	}
	if s := c.Settlement; s != nil {
		dto.Settlement = &SettlementDTO{
			Winner:            string(s.Winner),
			FinalBalanceLong:  s.FinalBalanceLong.StringFixed(places),
			FinalBalanceShort: s.FinalBalanceShort.StringFixed(places),
			Fee:               s.Fee.StringFixed(places),
			ClosedBy:          s.ClosedBy,
		}
	}
	return dto
}

func toReceiptDTO(r *settlement.Receipt) ReceiptDTO {
	places := r.Currency.Decimals()
	ids := make([]string, 0, len(r.TransactionIDs))
	for _, id := range r.TransactionIDs {
		ids = append(ids, id.String())
	}
	return ReceiptDTO{
		CrossID:           r.CrossID.String(),
		Currency:          string(r.Currency),
		Winner:            string(r.Winner),
		FinalBalanceLong:  r.FinalBalanceLong.StringFixed(places),
		FinalBalanceShort: r.FinalBalanceShort.StringFixed(places),
		Fee:               r.Fee.StringFixed(places),
		DeltaLong:         r.DeltaLong.StringFixed(places),
		DeltaShort:        r.DeltaShort.StringFixed(places),
		LongWallet:        r.LongWallet,
		ShortWallet:       r.ShortWallet,
		TeamWallet:        r.TeamWallet,
		TransactionIDs:    ids,
		ClosedAt:          r.ClosedAt,
		ClosedBy:          r.ClosedBy,
		Replayed:          r.Replayed,
	}
}
