package money

import "errors"

// Common money package errors
var (
	// ErrInvalidAmount is returned when an amount cannot be parsed as a decimal.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidCurrency is returned for malformed currency codes.
	ErrInvalidCurrency = errors.New("invalid currency code")

	// ErrInvalidDecimalPlaces is returned when an amount has more decimal places
	// than allowed by the currency.
	ErrInvalidDecimalPlaces = errors.New("amount has more decimal places than allowed by the currency")

	// ErrMismatchedCurrencies is returned when performing operations on money with
	// different currencies
	ErrMismatchedCurrencies = errors.New("mismatched currencies")
)
