// Package redisstore keeps accounts in Redis. Each account is a JSON record
// keyed by phone number, with a secondary key mapping id to phone.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kvetinski/identity/internal/domain"
	"github.com/kvetinski/identity/internal/telemetry"
)

const keyPrefix = "identity:account:"

// maxUpdateAttempts bounds retries of an Update whose watched key changed.
const maxUpdateAttempts = 3

type Store struct {
	rdb     redis.UniversalClient
	metrics *telemetry.Metrics
	now     func() time.Time
}

func New(rdb redis.UniversalClient) *Store {
	return NewWithMetrics(rdb, nil)
}

func NewWithMetrics(rdb redis.UniversalClient, metrics *telemetry.Metrics) *Store {
	return &Store{
		rdb:     rdb,
		metrics: metrics,
		now:     time.Now,
	}
}

func phoneKey(phone string) string { return keyPrefix + "phone:" + phone }

func idKey(id uuid.UUID) string { return keyPrefix + "id:" + id.String() }

// record is the stored form. Unlike domain.Account it keeps the password
// hash and the pending code.
type record struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	PhoneNumber  string     `json:"phone_number"`
	Role         string     `json:"role"`
	PasswordHash string     `json:"password_hash"`
	IsVerified   bool       `json:"is_verified"`
	Code         string     `json:"pending_code,omitempty"`
	ExpiresAt    *time.Time `json:"pending_code_expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toRecord(a domain.Account) record {
	r := record{
		ID:           a.ID,
		Name:         a.Name,
		PhoneNumber:  a.PhoneNumber,
		Role:         string(a.Role),
		PasswordHash: a.PasswordHash,
		IsVerified:   a.IsVerified,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
	if a.Pending != nil {
		exp := a.Pending.ExpiresAt
		r.Code = a.Pending.Code
		r.ExpiresAt = &exp
	}

	return r
}

func (r record) account() domain.Account {
	a := domain.Account{
		ID:           r.ID,
		Name:         r.Name,
		PhoneNumber:  r.PhoneNumber,
		Role:         domain.Role(r.Role),
		PasswordHash: r.PasswordHash,
		IsVerified:   r.IsVerified,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.Code != "" && r.ExpiresAt != nil {
		a.Pending = &domain.PendingCode{Code: r.Code, ExpiresAt: *r.ExpiresAt}
	}

	return a
}

func (s *Store) load(ctx context.Context, phone string) (record, error) {
	raw, err := s.rdb.Get(ctx, phoneKey(phone)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return record{}, domain.ErrAccountNotFound
		}
		return record{}, fmt.Errorf("get account: %w", err)
	}

	var r record
	if err = json.Unmarshal(raw, &r); err != nil {
		return record{}, fmt.Errorf("decode account: %w", err)
	}

	return r, nil
}

func (s *Store) phoneFor(ctx context.Context, id uuid.UUID) (string, error) {
	phone, err := s.rdb.Get(ctx, idKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrAccountNotFound
		}
		return "", fmt.Errorf("get account index: %w", err)
	}

	return phone, nil
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrAccountNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrDuplicateAccount):
		return "conflict"
	default:
		return "error"
	}
}

func (s *Store) FindByPhone(ctx context.Context, phone string) (acc domain.Account, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveStore("redis", "find_by_phone", statusOf(err), time.Since(start)) }()

	r, err := s.load(ctx, phone)
	if err != nil {
		return domain.Account{}, err
	}

	return r.account(), nil
}

func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (acc domain.Account, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveStore("redis", "find_by_id", statusOf(err), time.Since(start)) }()

	phone, err := s.phoneFor(ctx, id)
	if err != nil {
		return domain.Account{}, err
	}

	r, err := s.load(ctx, phone)
	if err != nil {
		return domain.Account{}, err
	}

	return r.account(), nil
}

// Insert claims the phone key with SETNX, so of two concurrent inserts for
// the same number exactly one succeeds.
func (s *Store) Insert(ctx context.Context, in domain.Account) (acc domain.Account, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveStore("redis", "insert", statusOf(err), time.Since(start)) }()

	now := s.now().UTC()
	in.ID = uuid.New()
	if in.CreatedAt.IsZero() {
		in.CreatedAt = now
	}
	in.UpdatedAt = now

	raw, err := json.Marshal(toRecord(in))
	if err != nil {
		return domain.Account{}, fmt.Errorf("encode account: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, phoneKey(in.PhoneNumber), raw, 0).Result()
	if err != nil {
		return domain.Account{}, fmt.Errorf("insert account: %w", err)
	}
	if !ok {
		return domain.Account{}, domain.ErrDuplicateAccount
	}

	if err = s.rdb.Set(ctx, idKey(in.ID), in.PhoneNumber, 0).Err(); err != nil {
		_ = s.rdb.Del(context.WithoutCancel(ctx), phoneKey(in.PhoneNumber)).Err()
		return domain.Account{}, fmt.Errorf("insert account index: %w", err)
	}

	return in, nil
}

// Update overwrites the mutable fields of an existing account. The phone
// number and creation time are kept from the stored record. The phone key is
// watched and the stored id compared, so a record replaced by a concurrent
// Delete and Insert of the same number is never overwritten.
func (s *Store) Update(ctx context.Context, in domain.Account) (acc domain.Account, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveStore("redis", "update", statusOf(err), time.Since(start)) }()

	phone, err := s.phoneFor(ctx, in.ID)
	if err != nil {
		return domain.Account{}, err
	}

	var next record
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, phoneKey(phone)).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return domain.ErrAccountNotFound
				}
				return fmt.Errorf("get account: %w", err)
			}

			var cur record
			if err = json.Unmarshal(raw, &cur); err != nil {
				return fmt.Errorf("decode account: %w", err)
			}
			if cur.ID != in.ID {
				return domain.ErrAccountNotFound
			}

			next = toRecord(in)
			next.ID = cur.ID
			next.PhoneNumber = cur.PhoneNumber
			next.CreatedAt = cur.CreatedAt
			next.UpdatedAt = s.now().UTC()

			enc, err := json.Marshal(next)
			if err != nil {
				return fmt.Errorf("encode account: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, phoneKey(phone), enc, 0)
				return nil
			})
			return err
		}, phoneKey(phone))
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.Account{}, err
		}
		return domain.Account{}, fmt.Errorf("update account: %w", err)
	}

	return next.account(), nil
}

// Delete removes both keys so the phone number can be registered again.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) (err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveStore("redis", "delete", statusOf(err), time.Since(start)) }()

	phone, err := s.phoneFor(ctx, id)
	if err != nil {
		return err
	}

	if _, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, phoneKey(phone))
		pipe.Del(ctx, idKey(id))
		return nil
	}); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	return nil
}
