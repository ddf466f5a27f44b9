// internal/util/errors.go
package util

import "errors"

// Common application-specific errors.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidInput        = errors.New("invalid input provided")
	ErrInvalidAmount       = errors.New("amount must be positive, below 1e16, with at most 4 decimal places")
	ErrSameParty           = errors.New("sender and recipient must differ")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrConflict            = errors.New("concurrent balance update conflict")
	ErrStoreUnavailable    = errors.New("ledger store unavailable")
	ErrDuplicateEntry      = errors.New("duplicate entry")
	ErrIdempotencyMismatch = errors.New("idempotency key reused with different transfer parameters")
	ErrBalanceOutOfRange   = errors.New("resulting balance exceeds the storable range")
	ErrMissingCaller       = errors.New("caller identity missing")
	ErrForbidden           = errors.New("caller is not allowed to perform this operation")
)

// IsError reports whether any error in err's chain matches target.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}
