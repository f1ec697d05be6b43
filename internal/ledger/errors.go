package ledger

import "errors"

// Business outcomes of the ledger core. All of these are expected,
// recoverable-by-caller conditions; infrastructure trouble surfaces as the
// store's ErrUnavailable instead.
var (
	// ErrAccountNotFound: no account with the requested id.
	ErrAccountNotFound = errors.New("account not found")

	// ErrEmailRequired: the email was empty after trimming.
	ErrEmailRequired = errors.New("email is required")

	// ErrEmailExists: another account already registered this email
	// (case-insensitive).
	ErrEmailExists = errors.New("email already exists")

	// ErrInvalidAmount: deposit/withdraw amount was zero or negative.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInsufficientFunds: the withdrawal would drive the balance below
	// zero. No state change occurs.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrTooMuchContention: the optimistic retry budget ran out while other
	// writers kept committing first. Safe for the caller to retry.
	ErrTooMuchContention = errors.New("too much contention on account")
)
