// Package memstore is an in-process account store. State is lost on restart.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kvetinski/identity/internal/domain"
	"github.com/kvetinski/identity/internal/telemetry"
)

type Store struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]domain.Account
	byPhone map[string]uuid.UUID
	metrics *telemetry.Metrics
	now     func() time.Time
}

func New() *Store {
	return NewWithMetrics(nil)
}

func NewWithMetrics(metrics *telemetry.Metrics) *Store {
	return &Store{
		byID:    make(map[uuid.UUID]domain.Account),
		byPhone: make(map[string]uuid.UUID),
		metrics: metrics,
		now:     time.Now,
	}
}

func (s *Store) FindByPhone(_ context.Context, phone string) (domain.Account, error) {
	start := time.Now()
	status := "ok"
	defer func() { s.metrics.ObserveStore("memory", "find_by_phone", status, time.Since(start)) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byPhone[phone]
	if !ok {
		status = "not_found"
		return domain.Account{}, domain.ErrAccountNotFound
	}

	return clone(s.byID[id]), nil
}

func (s *Store) FindByID(_ context.Context, id uuid.UUID) (domain.Account, error) {
	start := time.Now()
	status := "ok"
	defer func() { s.metrics.ObserveStore("memory", "find_by_id", status, time.Since(start)) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.byID[id]
	if !ok {
		status = "not_found"
		return domain.Account{}, domain.ErrAccountNotFound
	}

	return clone(acc), nil
}

// Insert stores acc under a fresh id unless its phone number is taken. The
// check and the write happen under one lock.
func (s *Store) Insert(_ context.Context, acc domain.Account) (domain.Account, error) {
	start := time.Now()
	status := "ok"
	defer func() { s.metrics.ObserveStore("memory", "insert", status, time.Since(start)) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byPhone[acc.PhoneNumber]; taken {
		status = "conflict"
		return domain.Account{}, domain.ErrDuplicateAccount
	}

	now := s.now().UTC()
	acc.ID = uuid.New()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = now

	s.byID[acc.ID] = clone(acc)
	s.byPhone[acc.PhoneNumber] = acc.ID

	return clone(acc), nil
}

// Update overwrites the mutable fields of an existing account. The phone
// number and creation time are kept from the stored record.
func (s *Store) Update(_ context.Context, acc domain.Account) (domain.Account, error) {
	start := time.Now()
	status := "ok"
	defer func() { s.metrics.ObserveStore("memory", "update", status, time.Since(start)) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[acc.ID]
	if !ok {
		status = "not_found"
		return domain.Account{}, domain.ErrAccountNotFound
	}

	cur.Name = acc.Name
	cur.Role = acc.Role
	cur.PasswordHash = acc.PasswordHash
	cur.IsVerified = acc.IsVerified
	cur.Pending = acc.Pending
	cur.UpdatedAt = s.now().UTC()
	s.byID[cur.ID] = clone(cur)

	return clone(cur), nil
}

func (s *Store) Delete(_ context.Context, id uuid.UUID) error {
	start := time.Now()
	status := "ok"
	defer func() { s.metrics.ObserveStore("memory", "delete", status, time.Since(start)) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		status = "not_found"
		return domain.ErrAccountNotFound
	}

	delete(s.byID, id)
	delete(s.byPhone, acc.PhoneNumber)

	return nil
}

// Len reports the number of stored accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.byID)
}

// clone copies the pending code so callers never share it with the store.
func clone(acc domain.Account) domain.Account {
	if acc.Pending != nil {
		p := *acc.Pending
		acc.Pending = &p
	}

	return acc
}
