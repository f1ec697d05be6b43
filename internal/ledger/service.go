// Package ledger enforces the wallet's business rules: non-negative
// balances, unique emails, and lost-update-free mutation through the store's
// conditional write.
package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/OneMiay/CustodialWallet/internal/domain"
	"github.com/OneMiay/CustodialWallet/internal/metrics"
	"github.com/OneMiay/CustodialWallet/internal/store"
)

// DefaultMaxRetries bounds the optimistic retry loop. Under no contention
// every mutation is a single read plus one conditional write.
const DefaultMaxRetries = 5

type Service struct {
	store      store.AccountStore
	log        *zap.Logger
	metrics    *metrics.Collector
	maxRetries int
}

// New wires the service. logger may be nil (logging is dropped), collector
// may be nil (metrics are dropped), maxRetries <= 0 selects the default.
func New(st store.AccountStore, log *zap.Logger, col *metrics.Collector, maxRetries int) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Service{
		store:      st,
		log:        log.Named("ledger"),
		metrics:    col,
		maxRetries: maxRetries,
	}
}

// CreateAccount registers a new account with a zero balance. Email
// uniqueness is enforced atomically by the store, not by a racy lookup here.
func (s *Service) CreateAccount(ctx context.Context, email string) (domain.Account, error) {
	start := time.Now()

	email = strings.TrimSpace(email)
	if email == "" {
		s.observe("create_account", start, ErrEmailRequired)
		return domain.Account{}, ErrEmailRequired
	}

	acc := domain.Account{
		ID:      uuid.New(),
		Email:   email,
		Balance: decimal.Zero,
		Version: 1,
	}

	created, err := s.store.Insert(ctx, acc)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			s.log.Warn("account creation rejected, email taken", zap.String("email", email))
			err = ErrEmailExists
		}
		s.observe("create_account", start, err)
		return domain.Account{}, err
	}

	s.log.Info("account created",
		zap.String("account_id", created.ID.String()),
		zap.String("email", created.Email),
	)
	s.observe("create_account", start, nil)
	return created, nil
}

// GetBalance returns a point-in-time snapshot; it may be stale the instant
// it is returned.
func (s *Service) GetBalance(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	start := time.Now()

	acc, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = ErrAccountNotFound
		}
		s.observe("get_balance", start, err)
		return domain.Account{}, err
	}

	s.observe("get_balance", start, nil)
	return acc, nil
}

// Deposit credits amount to the account and returns the post-deposit state.
func (s *Service) Deposit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (domain.Account, error) {
	start := time.Now()

	if amount.Sign() <= 0 {
		s.observe("deposit", start, ErrInvalidAmount)
		return domain.Account{}, ErrInvalidAmount
	}

	updated, err := s.mutate(ctx, "deposit", id, func(balance decimal.Decimal) (decimal.Decimal, error) {
		return balance.Add(amount), nil
	})
	if err != nil {
		s.observe("deposit", start, err)
		return domain.Account{}, err
	}

	s.log.Info("deposit applied",
		zap.String("account_id", id.String()),
		zap.String("amount", amount.String()),
		zap.String("new_balance", updated.Balance.String()),
	)
	s.observe("deposit", start, nil)
	return updated, nil
}

// Withdraw debits amount from the account. Sufficiency is checked against
// the balance read in the current attempt, so a withdrawal that loses an
// optimistic race is re-judged against the fresh balance before any retry.
func (s *Service) Withdraw(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (domain.Account, error) {
	start := time.Now()

	if amount.Sign() <= 0 {
		s.observe("withdraw", start, ErrInvalidAmount)
		return domain.Account{}, ErrInvalidAmount
	}

	updated, err := s.mutate(ctx, "withdraw", id, func(balance decimal.Decimal) (decimal.Decimal, error) {
		if balance.LessThan(amount) {
			return decimal.Decimal{}, ErrInsufficientFunds
		}
		return balance.Sub(amount), nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			s.log.Warn("withdrawal rejected, insufficient funds",
				zap.String("account_id", id.String()),
				zap.String("amount", amount.String()),
			)
		}
		s.observe("withdraw", start, err)
		return domain.Account{}, err
	}

	s.log.Info("withdrawal applied",
		zap.String("account_id", id.String()),
		zap.String("amount", amount.String()),
		zap.String("new_balance", updated.Balance.String()),
	)
	s.observe("withdraw", start, nil)
	return updated, nil
}

// mutate runs the read -> compute -> conditional-write cycle. compute sees
// the freshly read balance on every attempt; a version conflict restarts the
// whole cycle rather than replaying a stale delta.
func (s *Service) mutate(ctx context.Context, op string, id uuid.UUID, compute func(balance decimal.Decimal) (decimal.Decimal, error)) (domain.Account, error) {
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		acc, err := s.store.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Account{}, ErrAccountNotFound
			}
			return domain.Account{}, err
		}

		newBalance, err := compute(acc.Balance)
		if err != nil {
			return domain.Account{}, err
		}

		updated, err := s.store.CompareAndUpdate(ctx, id, acc.Version, newBalance)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, store.ErrVersionConflict) {
			s.metrics.IncConflict(op)
			s.log.Debug("version conflict, retrying",
				zap.String("op", op),
				zap.String("account_id", id.String()),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if errors.Is(err, store.ErrNotFound) {
			return domain.Account{}, ErrAccountNotFound
		}
		return domain.Account{}, err
	}

	s.metrics.IncExhaustion(op)
	s.log.Warn("optimistic retries exhausted",
		zap.String("op", op),
		zap.String("account_id", id.String()),
		zap.Int("max_retries", s.maxRetries),
	)
	return domain.Account{}, ErrTooMuchContention
}

func (s *Service) observe(op string, start time.Time, err error) {
	s.metrics.ObserveOperation(op, outcomeLabel(err), time.Since(start))
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAccountNotFound):
		return "not_found"
	case errors.Is(err, ErrEmailExists):
		return "email_exists"
	case errors.Is(err, ErrEmailRequired), errors.Is(err, ErrInvalidAmount):
		return "invalid"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrTooMuchContention):
		return "contention"
	case errors.Is(err, store.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
