// Package memstore keeps wallet accounts in process memory. It honors the
// same contract as the postgres store, including case-insensitive email
// uniqueness and version-conditioned updates, so the ledger service and its
// tests run against it unchanged.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/OneMiay/CustodialWallet/internal/domain"
	"github.com/OneMiay/CustodialWallet/internal/store"
)

type Store struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*domain.Account
	// byEmail indexes lowercased email -> id; storage keeps original casing.
	byEmail map[string]uuid.UUID
}

func New() *Store {
	return &Store{
		accounts: make(map[uuid.UUID]*domain.Account),
		byEmail:  make(map[string]uuid.UUID),
	}
}

var _ store.AccountStore = (*Store)(nil)

func (s *Store) Insert(ctx context.Context, acc domain.Account) (domain.Account, error) {
	key := strings.ToLower(acc.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[key]; taken {
		return domain.Account{}, store.ErrDuplicateEmail
	}

	now := time.Now()
	acc.CreatedAt = now
	acc.UpdatedAt = now

	cp := acc
	s.accounts[acc.ID] = &cp
	s.byEmail[key] = acc.ID
	return acc, nil
}

func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, store.ErrNotFound
	}
	return *acc, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return domain.Account{}, store.ErrNotFound
	}
	return *s.accounts[id], nil
}

func (s *Store) CompareAndUpdate(ctx context.Context, id uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, store.ErrNotFound
	}
	if acc.Version != expectedVersion {
		return domain.Account{}, store.ErrVersionConflict
	}

	acc.Balance = newBalance
	acc.Version++
	acc.UpdatedAt = time.Now()
	return *acc, nil
}
