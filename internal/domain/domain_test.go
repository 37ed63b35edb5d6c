package domain_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kvetinski/identity/internal/domain"
)

func TestParseRole(t *testing.T) {
	for _, raw := range []string{"admin", "client", "company"} {
		if r, ok := domain.ParseRole(raw); !ok || string(r) != raw {
			t.Errorf("ParseRole(%q) = %q, %v", raw, r, ok)
		}
	}
	for _, raw := range []string{"", "Admin", "root", " client"} {
		if _, ok := domain.ParseRole(raw); ok {
			t.Errorf("ParseRole(%q) accepted", raw)
		}
	}
}

func TestPendingCodeExpiryIsInclusive(t *testing.T) {
	exp := time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC)
	p := domain.PendingCode{Code: "482913", ExpiresAt: exp}

	if p.Expired(exp) {
		t.Fatal("code must still be valid at exactly its expiry")
	}
	if !p.Expired(exp.Add(time.Nanosecond)) {
		t.Fatal("code must be expired after its expiry")
	}
}

func TestMarkVerifiedClearsPending(t *testing.T) {
	acc := domain.Account{Pending: &domain.PendingCode{Code: "482913"}}
	acc.MarkVerified()

	if !acc.IsVerified || acc.Pending != nil {
		t.Fatalf("expected verified without pending code, got %+v", acc)
	}
}

func TestSummaryOmitsSecrets(t *testing.T) {
	acc := domain.Account{
		ID:           uuid.New(),
		Name:         "Amina",
		PhoneNumber:  "+212600000001",
		Role:         domain.RoleClient,
		PasswordHash: "$2a$12$secret",
		Pending:      &domain.PendingCode{Code: "482913"},
	}

	raw, err := json.Marshal(acc.Summary())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, leak := range []string{"secret", "482913", "password"} {
		if strings.Contains(string(raw), leak) {
			t.Fatalf("summary leaks %q: %s", leak, raw)
		}
	}

	raw, err = json.Marshal(acc)
	if err != nil {
		t.Fatalf("marshal account: %v", err)
	}
	if strings.Contains(string(raw), "secret") || strings.Contains(string(raw), "482913") {
		t.Fatalf("account json leaks secrets: %s", raw)
	}
}

func TestKindAndMessage(t *testing.T) {
	tests := []struct {
		err  error
		kind string
		msg  string
	}{
		{domain.ErrInvalidPhone, domain.KindInvalidArgument, domain.ErrInvalidPhone.Error()},
		{domain.ErrPasswordTooLong, domain.KindInvalidArgument, "password must be at most 72 bytes"},
		{domain.ErrDuplicateAccount, domain.KindDuplicateAccount, "phone number already registered"},
		{fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, errors.New("timeout")), domain.KindDeliveryFailed, "failed to send OTP"},
		{domain.ErrCodeExpired, domain.KindCodeExpired, "OTP expired"},
		{fmt.Errorf("%w: insert: %w", domain.ErrOperationFailed, errors.New("db down")), domain.KindOperationFailed, "registration failed"},
		{errors.New("dial tcp: refused"), domain.KindOperationFailed, "internal server error"},
	}

	for _, tt := range tests {
		if got := domain.Kind(tt.err); got != tt.kind {
			t.Errorf("Kind(%v) = %s, want %s", tt.err, got, tt.kind)
		}
		if got := domain.Message(tt.err); got != tt.msg {
			t.Errorf("Message(%v) = %q, want %q", tt.err, got, tt.msg)
		}
	}
}
