package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors
var (
	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("resource not found")
	// ErrAlreadyExists is returned when trying to create a resource that already exists
	ErrAlreadyExists = errors.New("resource already exists")
	// ErrValidation is returned when input validation fails
	ErrValidation = errors.New("validation error")
	// ErrUnauthorized is returned when the operator cannot be identified
	ErrUnauthorized = errors.New("unauthorized")
)

// Ledger errors
var (
	// ErrInvalidAmount is returned for non-positive or malformed amounts
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrSelfTransfer is returned when sender and recipient are the same wallet
	ErrSelfTransfer = errors.New("sender and recipient must differ")
	// ErrUnknownWallet is returned when a wallet does not exist or is inactive
	ErrUnknownWallet = errors.New("unknown or inactive wallet")
	// ErrCurrencyMismatch is returned when a transaction currency differs from a wallet currency
	ErrCurrencyMismatch = errors.New("currency does not match wallet currency")
	// ErrDuplicateName is returned when a wallet name is already taken
	ErrDuplicateName = errors.New("wallet name already exists")
	// ErrHasOpenReferences is returned when a hard delete would orphan ledger rows
	ErrHasOpenReferences = errors.New("resource is still referenced")
	// ErrImmutableTransaction is returned when changing a completed transaction
	ErrImmutableTransaction = errors.New("completed transactions are immutable")
	// ErrIdempotencyConflict is returned when a key is reused with a different payload
	ErrIdempotencyConflict = errors.New("idempotency key reused with a different request")
)

// Cross errors
var (
	// ErrSameClientBothLegs is returned when long and short legs share a client
	ErrSameClientBothLegs = errors.New("long and short legs must reference different clients")
	// ErrInvalidLeg is returned for a missing leg or a leg with non-positive volume
	ErrInvalidLeg = errors.New("invalid cross leg")
	// ErrInvalidBalance is returned when a final balance or fee is unusable
	ErrInvalidBalance = errors.New("invalid final balance")
	// ErrNotActive is returned when closing a cross that is closed or suspended
	ErrNotActive = errors.New("cross is not active")
	// ErrInvalidTransition is returned for state changes the cross state machine forbids
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Infrastructure errors surfaced to callers
var (
	// ErrStorageUnavailable is returned when the store cannot be reached; safe to retry
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrConcurrentModification is returned when a conditional update lost a race
	ErrConcurrentModification = errors.New("concurrent modification")
)

// ReferenceError lists what blocks a hard delete.
type ReferenceError struct {
	Resource string
	Blocking []string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s is still referenced by: %s", e.Resource, strings.Join(e.Blocking, ", "))
}

func (e *ReferenceError) Unwrap() error { return ErrHasOpenReferences }

// NewReferenceError builds a ReferenceError for resource.
func NewReferenceError(resource string, blocking ...string) *ReferenceError {
	return &ReferenceError{Resource: resource, Blocking: blocking}
}
