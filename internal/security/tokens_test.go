package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kvetinski/identity/internal/domain"
)

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()

	p, err := NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), "identity-test", time.Hour)
	if err != nil {
		t.Fatalf("new token issuer: %v", err)
	}

	return p
}

func TestNewTokenIssuerRejectsEmptySecret(t *testing.T) {
	if _, err := NewTokenIssuer(nil, "iss", time.Hour); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
}

func TestIssueAndVerify(t *testing.T) {
	p := newTestIssuer(t)
	id := uuid.New()

	token, err := p.Issue(id, domain.RoleClient)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := p.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	got, err := claims.AccountID()
	if err != nil {
		t.Fatalf("account id: %v", err)
	}
	if got != id {
		t.Fatalf("expected subject %s, got %s", id, got)
	}
	if claims.Role != domain.RoleClient {
		t.Fatalf("expected role client, got %s", claims.Role)
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		t.Fatal("expected iat and exp to be set")
	}
	if claims.ID == "" {
		t.Fatal("expected jti to be set")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	p := newTestIssuer(t)
	issuedAt := time.Now()
	p.now = func() time.Time { return issuedAt }

	token, err := p.Issue(uuid.New(), domain.RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	p.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
	if _, err := p.Verify(token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	p := newTestIssuer(t)
	other, err := NewTokenIssuer([]byte("another-secret-another-secret-xx"), "identity-test", time.Hour)
	if err != nil {
		t.Fatalf("new token issuer: %v", err)
	}

	token, err := other.Issue(uuid.New(), domain.RoleClient)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := p.Verify(token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	p := newTestIssuer(t)
	other, err := NewTokenIssuer(p.secret, "someone-else", time.Hour)
	if err != nil {
		t.Fatalf("new token issuer: %v", err)
	}

	token, err := other.Issue(uuid.New(), domain.RoleClient)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := p.Verify(token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	p := newTestIssuer(t)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Issuer:    "identity-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: domain.RoleAdmin,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	if _, err := p.Verify(token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	p := newTestIssuer(t)

	for _, token := range []string{"", "abc", strings.Repeat("x.", 3)} {
		if _, err := p.Verify(token); !errors.Is(err, domain.ErrInvalidToken) {
			t.Fatalf("Verify(%q): expected ErrInvalidToken, got %v", token, err)
		}
	}
}
