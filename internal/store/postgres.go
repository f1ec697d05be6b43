package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/OneMiay/CustodialWallet/internal/domain"
)

const pgUniqueViolation = "23505"

// Balances live in NUMERIC(38,18) and travel as text so no layer ever
// touches binary floating point.
const accountColumns = `account_id, email, balance::text, version, created_at, updated_at`

// Postgres implements AccountStore on a pgx pool. The DB is authoritative
// for both invariants: the unique index on lower(email) and the
// CHECK (balance >= 0) backstop.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres { return &Postgres{db: db} }

var _ AccountStore = (*Postgres)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var acc domain.Account
	var balance string
	if err := row.Scan(&acc.ID, &acc.Email, &balance, &acc.Version, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		return domain.Account{}, err
	}
	bal, err := decimal.NewFromString(balance)
	if err != nil {
		return domain.Account{}, fmt.Errorf("parse stored balance %q: %w", balance, err)
	}
	acc.Balance = bal
	return acc, nil
}

// infraErr wraps anything that is not a business outcome so callers can
// make retry-with-backoff decisions against ErrUnavailable.
func infraErr(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (p *Postgres) Insert(ctx context.Context, acc domain.Account) (domain.Account, error) {
	row := p.db.QueryRow(ctx,
		`INSERT INTO wallet_accounts(account_id, email, balance, version)
		 VALUES($1, $2, $3::numeric, $4)
		 RETURNING `+accountColumns,
		acc.ID, acc.Email, acc.Balance.String(), acc.Version,
	)
	created, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.Account{}, ErrDuplicateEmail
		}
		return domain.Account{}, infraErr(err)
	}
	return created, nil
}

func (p *Postgres) FindByID(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	row := p.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM wallet_accounts WHERE account_id=$1`, id)
	acc, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrNotFound
		}
		return domain.Account{}, infraErr(err)
	}
	return acc, nil
}

// FindByEmail matches case-insensitively; storage keeps the email exactly
// as it was registered.
func (p *Postgres) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	row := p.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM wallet_accounts WHERE lower(email)=lower($1)`, email)
	acc, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrNotFound
		}
		return domain.Account{}, infraErr(err)
	}
	return acc, nil
}

// CompareAndUpdate is a single conditional UPDATE keyed on the version the
// caller read. Zero rows updated means either the account vanished or
// another writer committed first; a follow-up existence probe decides which.
func (p *Postgres) CompareAndUpdate(ctx context.Context, id uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) (domain.Account, error) {
	row := p.db.QueryRow(ctx,
		`UPDATE wallet_accounts
		    SET balance=$3::numeric, version=version+1, updated_at=now()
		  WHERE account_id=$1 AND version=$2
		 RETURNING `+accountColumns,
		id, expectedVersion, newBalance.String(),
	)
	acc, err := scanAccount(row)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, infraErr(err)
	}

	var exists bool
	probeErr := p.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM wallet_accounts WHERE account_id=$1)`, id,
	).Scan(&exists)
	if probeErr != nil {
		return domain.Account{}, infraErr(probeErr)
	}
	if !exists {
		return domain.Account{}, ErrNotFound
	}
	return domain.Account{}, ErrVersionConflict
}
