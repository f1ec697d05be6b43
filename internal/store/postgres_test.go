package store_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/OneMiay/CustodialWallet/internal/domain"
	"github.com/OneMiay/CustodialWallet/internal/ledger"
	"github.com/OneMiay/CustodialWallet/internal/store"
)

// These tests need a reachable postgres; they skip without WALLET_DB_DSN.

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("WALLET_DB_DSN"))
	if dsn == "" {
		t.Skip("missing WALLET_DB_DSN env var")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	cfg.MaxConns = 20
	cfg.MinConns = 1

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := store.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func uniqueEmail(prefix string) string {
	return prefix + "-" + uuid.NewString() + "@example.com"
}

func newAccount(email string) domain.Account {
	return domain.Account{ID: uuid.New(), Email: email, Balance: decimal.Zero, Version: 1}
}

func TestPostgresInsertAndUniqueness(t *testing.T) {
	pool := testPool(t)
	st := store.NewPostgres(pool)
	ctx := context.Background()

	email := uniqueEmail("Insert")
	acc, err := st.Insert(ctx, newAccount(email))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if acc.Version != 1 || !acc.Balance.IsZero() {
		t.Fatalf("unexpected inserted state: %+v", acc)
	}

	// Different casing must still collide.
	_, err = st.Insert(ctx, newAccount(strings.ToUpper(email)))
	if !errors.Is(err, store.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	byEmail, err := st.FindByEmail(ctx, strings.ToUpper(email))
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if byEmail.ID != acc.ID || byEmail.Email != email {
		t.Fatalf("expected case-insensitive lookup with preserved casing, got %+v", byEmail)
	}

	if _, err := st.FindByID(ctx, uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresCompareAndUpdate(t *testing.T) {
	pool := testPool(t)
	st := store.NewPostgres(pool)
	ctx := context.Background()

	acc, err := st.Insert(ctx, newAccount(uniqueEmail("cas")))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	// A value binary floating point cannot hold must round-trip exactly.
	pi := decimal.RequireFromString("3.141592653589793238")
	updated, err := st.CompareAndUpdate(ctx, acc.ID, 1, pi)
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if !updated.Balance.Equal(pi) {
		t.Fatalf("balance round trip drifted: got %s want %s", updated.Balance, pi)
	}
	if updated.Version != 2 {
		t.Fatalf("version: got %d want 2", updated.Version)
	}

	_, err = st.CompareAndUpdate(ctx, acc.ID, 1, decimal.RequireFromString("1"))
	if !errors.Is(err, store.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict for stale version, got %v", err)
	}
	cur, err := st.FindByID(ctx, acc.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !cur.Balance.Equal(pi) || cur.Version != 2 {
		t.Fatalf("conflicting write mutated state: %+v", cur)
	}

	_, err = st.CompareAndUpdate(ctx, uuid.New(), 1, pi)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresConcurrentDepositsNoneLost(t *testing.T) {
	pool := testPool(t)
	svc := ledger.New(store.NewPostgres(pool), nil, nil, 100)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	acc, err := svc.CreateAccount(ctx, uniqueEmail("fanout"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const N = 20
	var wg sync.WaitGroup
	wg.Add(N)
	errs := make([]error, N)

	for i := 0; i < N; i++ {
		i := i
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Deposit(ctx, acc.ID, decimal.RequireFromString("1"))
		}()
	}
	wg.Wait()

	for i := 0; i < N; i++ {
		if errs[i] != nil {
			t.Fatalf("deposit %d failed: %v", i, errs[i])
		}
	}

	snap, err := svc.GetBalance(ctx, acc.ID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if !snap.Balance.Equal(decimal.NewFromInt(N)) {
		t.Fatalf("lost update: got %s want %d", snap.Balance, N)
	}
}
