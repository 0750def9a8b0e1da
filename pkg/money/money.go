// Package money provides functionality for handling monetary values.
//
// It is a value object that represents a monetary value in a specific currency.
// Invariants:
//   - Amount is a fixed-point decimal, never a float.
//   - Amount never carries more fractional digits than its currency allows.
//   - Currency code is 3 to 5 uppercase letters (ISO 4217 or a token ticker such as USDT).
//   - All arithmetic operations require matching currencies.
package money

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value in a specific currency.
type Money struct {
	amount   decimal.Decimal
	currency Code
}

// New creates a new Money value object with the given amount and currency.
// Amounts with more decimal places than the currency allows are rejected,
// they are never rounded.
func New(amount decimal.Decimal, code Code) (Money, error) {
	if !code.IsValid() {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	if !amount.Equal(amount.Truncate(code.Decimals())) {
		return Money{}, fmt.Errorf(
			"%w: %s allows %d, got %s",
			ErrInvalidDecimalPlaces,
			code,
			code.Decimals(),
			amount.String(),
		)
	}
	return Money{amount: amount, currency: code}, nil
}

// Parse creates Money from a decimal string such as "120.50".
func Parse(amount string, code Code) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return New(d, code)
}

// Must is like New but panics on error. Intended for tests and constants.
func Must(amount string, code Code) Money {
	m, err := Parse(amount, code)
	if err != nil {
		panic(fmt.Sprintf("money.Must(%q, %q): %v", amount, code, err))
	}
	return m
}

// Zero creates a Money object with zero amount in the specified currency.
func Zero(code Code) Money {
	return Money{amount: decimal.Zero, currency: code}
}

// Amount returns the decimal amount.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the currency code.
func (m Money) Currency() Code { return m.currency }

func (m Money) IsZero() bool     { return m.amount.IsZero() }
func (m Money) IsNegative() bool { return m.amount.IsNegative() }
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

// Add returns m + other. Currencies must match.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("%w: %s and %s", ErrMismatchedCurrencies, m.currency, other.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Subtract returns m - other. Currencies must match. The result may be negative.
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("%w: %s and %s", ErrMismatchedCurrencies, m.currency, other.currency)
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// Negate returns -m.
func (m Money) Negate() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

// Abs returns |m|.
func (m Money) Abs() Money {
	return Money{amount: m.amount.Abs(), currency: m.currency}
}

// Equal reports whether both values have the same currency and amount.
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// GreaterThan compares two amounts of the same currency.
func (m Money) GreaterThan(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, fmt.Errorf("%w: %s and %s", ErrMismatchedCurrencies, m.currency, other.currency)
	}
	return m.amount.GreaterThan(other.amount), nil
}

// StringAmount renders the amount with exactly the currency's decimal places.
func (m Money) StringAmount() string {
	return m.amount.StringFixed(m.currency.Decimals())
}

// String returns "120.50 USDT" style output.
func (m Money) String() string {
	return m.StringAmount() + " " + string(m.currency)
}

// MarshalJSON implements json.Marshaler. Amounts are encoded as strings.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"amount":   m.StringAmount(),
		"currency": string(m.currency),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Money) UnmarshalJSON(data []byte) error {
	var aux struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	parsed, err := Parse(aux.Amount, Code(aux.Currency))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
