package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/OneMiay/CustodialWallet/internal/domain"
)

// BreakerStore wraps an AccountStore with a circuit breaker. Only
// ErrUnavailable counts as a failure: business rejections (duplicate email,
// overdrafts upstream, version conflicts) must never trip the breaker.
type BreakerStore struct {
	inner AccountStore
	cb    *gobreaker.CircuitBreaker
}

func NewBreakerStore(inner AccountStore, log *zap.Logger) *BreakerStore {
	settings := gobreaker.Settings{
		Name:     "account-store",
		Interval: time.Minute,
		Timeout:  10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &BreakerStore{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

var _ AccountStore = (*BreakerStore)(nil)

func (b *BreakerStore) execute(fn func() (domain.Account, error)) (domain.Account, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.Account{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return domain.Account{}, err
	}
	return out.(domain.Account), nil
}

func (b *BreakerStore) Insert(ctx context.Context, acc domain.Account) (domain.Account, error) {
	return b.execute(func() (domain.Account, error) { return b.inner.Insert(ctx, acc) })
}

func (b *BreakerStore) FindByID(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	return b.execute(func() (domain.Account, error) { return b.inner.FindByID(ctx, id) })
}

func (b *BreakerStore) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	return b.execute(func() (domain.Account, error) { return b.inner.FindByEmail(ctx, email) })
}

func (b *BreakerStore) CompareAndUpdate(ctx context.Context, id uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) (domain.Account, error) {
	return b.execute(func() (domain.Account, error) {
		return b.inner.CompareAndUpdate(ctx, id, expectedVersion, newBalance)
	})
}
