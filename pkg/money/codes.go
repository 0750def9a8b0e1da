package money

import "strings"

// Code represents a currency code (e.g., "USDT", "EUR").
type Code string

// Common currency codes
const (
	USDT Code = "USDT" // Tether, the ledger's working currency
	USDC Code = "USDC" // USD Coin
	USD  Code = "USD"  // US Dollar
	EUR  Code = "EUR"  // Euro
	GBP  Code = "GBP"  // British Pound
)

// DefaultCode is the default currency code.
const DefaultCode = USDT

// defaultDecimals applies to valid codes with no explicit entry.
const defaultDecimals int32 = 2

var decimalsByCode = map[Code]int32{
	USDT: 6,
	USDC: 6,
	USD:  2,
	EUR:  2,
	GBP:  2,
}

// ParseCode normalises and validates a currency code.
func ParseCode(s string) (Code, error) {
	c := Code(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", ErrInvalidCurrency
	}
	return c, nil
}

// IsValid checks the code is 3 to 5 uppercase ASCII letters.
func (c Code) IsValid() bool {
	if len(c) < 3 || len(c) > 5 {
		return false
	}
	for i := 0; i < len(c); i++ {
		if c[i] < 'A' || c[i] > 'Z' {
			return false
		}
	}
	return true
}

// Decimals returns the number of fractional digits allowed for the code.
func (c Code) Decimals() int32 {
	if d, ok := decimalsByCode[c]; ok {
		return d
	}
	return defaultDecimals
}

// String returns the string representation of the currency code.
func (c Code) String() string {
	return string(c)
}
