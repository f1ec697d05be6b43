package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/OneMiay/CustodialWallet/internal/domain"
)

var (
	// ErrNotFound: no account with the given id or email.
	ErrNotFound = errors.New("account not found")

	// ErrDuplicateEmail: an account with the same email (case-insensitive)
	// already exists. Raised by the storage layer's uniqueness constraint,
	// never by a check-then-insert in application code.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrVersionConflict: the conditional write observed a version other
	// than the one the caller read. The caller must re-read and retry.
	ErrVersionConflict = errors.New("account version conflict")

	// ErrUnavailable wraps connectivity and other infrastructure failures
	// so callers can tell transient trouble from business outcomes.
	ErrUnavailable = errors.New("store unavailable")
)

// AccountStore is the durable home of wallet accounts. CompareAndUpdate is
// the only way a balance changes: it commits newBalance and bumps the
// version only when the stored version still equals expectedVersion, which
// serializes conflicting writers per account.
type AccountStore interface {
	Insert(ctx context.Context, acc domain.Account) (domain.Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (domain.Account, error)
	FindByEmail(ctx context.Context, email string) (domain.Account, error)
	CompareAndUpdate(ctx context.Context, id uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) (domain.Account, error)
}
