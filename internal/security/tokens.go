package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kvetinski/identity/internal/domain"
)

const DefaultTokenTTL = 24 * time.Hour

var ErrEmptySecret = errors.New("token secret is empty")

// Claims is the session token payload. Subject carries the account id.
type Claims struct {
	jwt.RegisteredClaims
	Role domain.Role `json:"role"`
}

func (c *Claims) AccountID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// TokenIssuer signs and verifies HS256 session tokens with a process-wide
// secret.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret []byte, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	key := make([]byte, len(secret))
	copy(key, secret)

	return &TokenIssuer{
		secret: key,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (p *TokenIssuer) Issue(accountID uuid.UUID, role domain.Role) (string, error) {
	jti, err := generateJTI()
	if err != nil {
		return "", err
	}

	now := p.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   accountID.String(),
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
		Role: role,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

// Verify checks signature, algorithm, expiry and issuer. Every failure is
// reported as domain.ErrInvalidToken.
func (p *TokenIssuer) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, domain.ErrInvalidToken
	}
	if _, err := claims.AccountID(); err != nil {
		return nil, domain.ErrInvalidToken
	}

	return claims, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
