package domain

import "errors"

var (
	ErrInvalidName     = errors.New("name is required")
	ErrInvalidPhone    = errors.New("phone number must be in international format (e.g. +212697042868)")
	ErrInvalidRole     = errors.New("role must be one of admin, client, company")
	ErrInvalidPassword = errors.New("password is required")
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")

	ErrDuplicateAccount   = errors.New("phone number already registered")
	ErrDeliveryFailed     = errors.New("failed to send OTP")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidCode        = errors.New("invalid OTP")
	ErrCodeExpired        = errors.New("OTP expired")
	ErrNotVerified        = errors.New("phone number not verified")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrOperationFailed    = errors.New("registration failed")
)

// Error kinds exposed to callers. They are stable across releases.
const (
	KindInvalidArgument    = "InvalidArgument"
	KindDuplicateAccount   = "DuplicateAccount"
	KindDeliveryFailed     = "DeliveryFailed"
	KindAccountNotFound    = "AccountNotFound"
	KindInvalidCode        = "InvalidCode"
	KindCodeExpired        = "CodeExpired"
	KindNotVerified        = "NotVerified"
	KindInvalidCredentials = "InvalidCredentials"
	KindInvalidToken       = "InvalidToken"
	KindOperationFailed    = "OperationFailed"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidName, KindInvalidArgument},
	{ErrInvalidPhone, KindInvalidArgument},
	{ErrInvalidRole, KindInvalidArgument},
	{ErrInvalidPassword, KindInvalidArgument},
	{ErrPasswordTooLong, KindInvalidArgument},
	{ErrDuplicateAccount, KindDuplicateAccount},
	{ErrDeliveryFailed, KindDeliveryFailed},
	{ErrAccountNotFound, KindAccountNotFound},
	{ErrInvalidCode, KindInvalidCode},
	{ErrCodeExpired, KindCodeExpired},
	{ErrNotVerified, KindNotVerified},
	{ErrInvalidCredentials, KindInvalidCredentials},
	{ErrInvalidToken, KindInvalidToken},
	{ErrOperationFailed, KindOperationFailed},
}

// Kind returns the stable kind of err. Errors outside the taxonomy are
// reported as KindOperationFailed.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}

	return KindOperationFailed
}

// Message returns the caller-facing text for err. Errors outside the taxonomy
// get a fixed text so store and transport details never leak.
func Message(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.err.Error()
		}
	}

	return "internal server error"
}
