package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost = 12

	// MaxPasswordBytes is the longest input bcrypt accepts.
	MaxPasswordBytes = 72
)

var ErrPasswordTooLong = errors.New("security: password exceeds 72 bytes")

// Hasher turns account passwords into bcrypt digests for the account store.
type Hasher struct {
	cost int
}

// NewHasher uses DefaultBcryptCost for a non-positive cost and clamps
// anything else to what bcrypt supports.
func NewHasher(cost int) *Hasher {
	return &Hasher{cost: clampCost(cost)}
}

func clampCost(cost int) int {
	switch {
	case cost <= 0:
		return DefaultBcryptCost
	case cost < bcrypt.MinCost:
		return bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		return bcrypt.MaxCost
	default:
		return cost
	}
}

func (h *Hasher) Cost() int {
	return h.cost
}

// Hash returns the digest stored as the account's password_hash.
func (h *Hasher) Hash(password []byte) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	digest, err := bcrypt.GenerateFromPassword(password, h.cost)
	if err != nil {
		return "", err
	}

	return string(digest), nil
}

// Compare reports a login password mismatch as
// bcrypt.ErrMismatchedHashAndPassword.
func (h *Hasher) Compare(hash string, password []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), password)
}
