package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleClient  Role = "client"
	RoleCompany Role = "company"
)

func ParseRole(raw string) (Role, bool) {
	switch r := Role(raw); r {
	case RoleAdmin, RoleClient, RoleCompany:
		return r, true
	default:
		return "", false
	}
}

// PendingCode is an outstanding phone verification. An account either has
// both the code and its expiry or neither.
type PendingCode struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether now is strictly after the expiry.
func (p PendingCode) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

type Account struct {
	ID           uuid.UUID    `json:"id"`
	Name         string       `json:"name"`
	PhoneNumber  string       `json:"phone_number"`
	Role         Role         `json:"role"`
	PasswordHash string       `json:"-"`
	IsVerified   bool         `json:"is_verified"`
	Pending      *PendingCode `json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Summary is the part of an account that may leave the service.
type Summary struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phoneNumber"`
	Role        Role      `json:"role"`
	IsVerified  bool      `json:"isVerified"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (a Account) Summary() Summary {
	return Summary{
		ID:          a.ID,
		Name:        a.Name,
		PhoneNumber: a.PhoneNumber,
		Role:        a.Role,
		IsVerified:  a.IsVerified,
		CreatedAt:   a.CreatedAt,
	}
}

// MarkVerified flips the verified flag and drops the pending code.
func (a *Account) MarkVerified() {
	a.IsVerified = true
	a.Pending = nil
}
