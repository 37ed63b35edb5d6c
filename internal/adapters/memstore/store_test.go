package memstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kvetinski/identity/internal/adapters/memstore"
	"github.com/kvetinski/identity/internal/domain"
)

func newAccount(phone string) domain.Account {
	return domain.Account{
		Name:         "Amina",
		PhoneNumber:  phone,
		Role:         domain.RoleClient,
		PasswordHash: "hash",
		Pending:      &domain.PendingCode{Code: "123456", ExpiresAt: time.Now().Add(10 * time.Minute)},
	}
}

func TestInsertAssignsIDAndTimestamps(t *testing.T) {
	s := memstore.New()

	acc, err := s.Insert(context.Background(), newAccount("+212600000001"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if acc.ID == uuid.Nil {
		t.Fatal("expected id to be assigned")
	}
	if acc.CreatedAt.IsZero() || acc.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}

	got, err := s.FindByPhone(context.Background(), "+212600000001")
	if err != nil {
		t.Fatalf("find by phone: %v", err)
	}
	if got.ID != acc.ID {
		t.Fatalf("expected id %s, got %s", acc.ID, got.ID)
	}
}

func TestInsertRejectsDuplicatePhone(t *testing.T) {
	s := memstore.New()

	if _, err := s.Insert(context.Background(), newAccount("+212600000001")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.Insert(context.Background(), newAccount("+212600000001")); !errors.Is(err, domain.ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}
}

func TestConcurrentInsertSamePhoneHasOneWinner(t *testing.T) {
	s := memstore.New()

	const n = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, dups := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Insert(context.Background(), newAccount("+212600000001"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrDuplicateAccount):
				dups++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || dups != n-1 {
		t.Fatalf("expected 1 win and %d duplicates, got %d and %d", n-1, wins, dups)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 stored account, got %d", s.Len())
	}
}

func TestUpdateClearsPendingCode(t *testing.T) {
	s := memstore.New()
	acc, err := s.Insert(context.Background(), newAccount("+212600000001"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	acc.MarkVerified()
	if _, err = s.Update(context.Background(), acc); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.FindByID(context.Background(), acc.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if !got.IsVerified || got.Pending != nil {
		t.Fatalf("expected verified account without pending code, got %+v", got)
	}
}

func TestReturnedAccountsDoNotAliasStore(t *testing.T) {
	s := memstore.New()
	acc, err := s.Insert(context.Background(), newAccount("+212600000001"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	acc.Pending.Code = "999999"

	got, err := s.FindByID(context.Background(), acc.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if got.Pending.Code != "123456" {
		t.Fatalf("expected stored code to be unchanged, got %s", got.Pending.Code)
	}
}

func TestNotFoundIsDistinct(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	if _, err := s.FindByPhone(ctx, "+1000"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("find by phone: expected ErrAccountNotFound, got %v", err)
	}
	if _, err := s.FindByID(ctx, uuid.New()); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("find by id: expected ErrAccountNotFound, got %v", err)
	}
	if _, err := s.Update(ctx, domain.Account{ID: uuid.New()}); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("update: expected ErrAccountNotFound, got %v", err)
	}
	if err := s.Delete(ctx, uuid.New()); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("delete: expected ErrAccountNotFound, got %v", err)
	}
}

func TestDeleteFreesPhoneNumber(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	acc, err := s.Insert(ctx, newAccount("+212600000001"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err = s.Delete(ctx, acc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err = s.Insert(ctx, newAccount("+212600000001")); err != nil {
		t.Fatalf("re-insert after delete: %v", err)
	}
}
