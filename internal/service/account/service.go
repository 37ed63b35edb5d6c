package account

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kvetinski/identity/internal/domain"
	"github.com/kvetinski/identity/internal/security"
	"github.com/kvetinski/identity/internal/telemetry"
)

// CodeTTL is the fixed lifetime of a verification code.
const CodeTTL = 10 * time.Minute

const (
	DefaultDeliveryTimeout = 10 * time.Second
	rollbackTimeout        = 5 * time.Second
)

const (
	MessageCodeSent = "OTP sent successfully"
	MessageVerified = "Phone number verified successfully"
	MessageLoggedIn = "Login successful"
)

var phonePattern = regexp.MustCompile(`^\+[1-9][0-9]{1,14}$`)

// Repository is the account store. Insert must reject an existing phone
// number atomically with domain.ErrDuplicateAccount; lookups, Update and
// Delete report a missing account with domain.ErrAccountNotFound.
type Repository interface {
	FindByPhone(ctx context.Context, phone string) (domain.Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (domain.Account, error)
	Insert(ctx context.Context, acc domain.Account) (domain.Account, error)
	Update(ctx context.Context, acc domain.Account) (domain.Account, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type PasswordHasher interface {
	Hash(password []byte) (string, error)
	Compare(hash string, password []byte) error
}

type CodeGenerator interface {
	Generate() (string, error)
}

type Sender interface {
	Send(ctx context.Context, destination, text string) error
}

type TokenIssuer interface {
	Issue(accountID uuid.UUID, role domain.Role) (string, error)
	Verify(token string) (*security.Claims, error)
}

type RegisterInput struct {
	Name        string
	PhoneNumber string
	Role        string
	Password    string
}

type RegisterResult struct {
	AccountID uuid.UUID
	Message   string
}

type LoginResult struct {
	Message string
	Token   string
	Account domain.Summary
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithDeliveryTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.deliveryTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = metrics }
}

// Service runs the register, verify and login transitions of an account.
type Service struct {
	repo    Repository
	hasher  PasswordHasher
	codes   CodeGenerator
	sender  Sender
	tokens  TokenIssuer
	logger  *slog.Logger
	metrics *telemetry.Metrics

	now             func() time.Time
	deliveryTimeout time.Duration
}

func New(repo Repository, hasher PasswordHasher, codes CodeGenerator, sender Sender, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{
		repo:            repo,
		hasher:          hasher,
		codes:           codes,
		sender:          sender,
		tokens:          tokens,
		logger:          slog.Default(),
		now:             time.Now,
		deliveryTimeout: DefaultDeliveryTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Register creates an unverified account and texts it a verification code.
// If the text cannot be delivered the account is deleted again.
func (s *Service) Register(ctx context.Context, in RegisterInput) (res RegisterResult, err error) {
	defer func() { s.observe("register", err) }()

	name := strings.TrimSpace(in.Name)
	phone := strings.TrimSpace(in.PhoneNumber)
	if name == "" {
		return RegisterResult{}, domain.ErrInvalidName
	}
	if !isValidPhone(phone) {
		return RegisterResult{}, domain.ErrInvalidPhone
	}
	role, ok := domain.ParseRole(strings.TrimSpace(in.Role))
	if !ok {
		return RegisterResult{}, domain.ErrInvalidRole
	}
	switch {
	case in.Password == "":
		return RegisterResult{}, domain.ErrInvalidPassword
	case len(in.Password) > security.MaxPasswordBytes:
		return RegisterResult{}, domain.ErrPasswordTooLong
	}

	_, err = s.repo.FindByPhone(ctx, phone)
	switch {
	case err == nil:
		return RegisterResult{}, domain.ErrDuplicateAccount
	case !errors.Is(err, domain.ErrAccountNotFound):
		return RegisterResult{}, operationFailed("find account", err)
	}

	hash, err := s.hasher.Hash([]byte(in.Password))
	if err != nil {
		return RegisterResult{}, operationFailed("hash password", err)
	}

	code, err := s.codes.Generate()
	if err != nil {
		return RegisterResult{}, operationFailed("generate code", err)
	}

	now := s.now().UTC()
	acc, err := s.repo.Insert(ctx, domain.Account{
		Name:         name,
		PhoneNumber:  phone,
		Role:         role,
		PasswordHash: hash,
		Pending:      &domain.PendingCode{Code: code, ExpiresAt: now.Add(CodeTTL)},
		CreatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateAccount) {
			return RegisterResult{}, domain.ErrDuplicateAccount
		}
		return RegisterResult{}, operationFailed("insert account", err)
	}

	if err = s.deliver(ctx, phone, code); err != nil {
		s.logger.WarnContext(ctx, "verification code delivery failed", "account_id", acc.ID, "error", err)
		s.rollback(ctx, acc.ID)
		return RegisterResult{}, fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
	}

	return RegisterResult{AccountID: acc.ID, Message: MessageCodeSent}, nil
}

// Verify consumes the pending code of the account. A wrong or missing code is
// checked before expiry, so an expired wrong code reports ErrInvalidCode.
func (s *Service) Verify(ctx context.Context, phoneNumber, code string) (msg string, err error) {
	defer func() { s.observe("verify", err) }()

	acc, err := s.find(ctx, strings.TrimSpace(phoneNumber))
	if err != nil {
		return "", err
	}

	if acc.Pending == nil || !codesEqual(acc.Pending.Code, code) {
		return "", domain.ErrInvalidCode
	}

	if acc.Pending.Expired(s.now()) {
		return "", domain.ErrCodeExpired
	}

	acc.MarkVerified()
	if _, err = s.repo.Update(ctx, acc); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return "", domain.ErrAccountNotFound
		}
		return "", fmt.Errorf("update account: %w", err)
	}

	return MessageVerified, nil
}

// Login checks the password of a verified account and issues a session token.
func (s *Service) Login(ctx context.Context, phoneNumber, password string) (res LoginResult, err error) {
	defer func() { s.observe("login", err) }()

	acc, err := s.find(ctx, strings.TrimSpace(phoneNumber))
	if err != nil {
		return LoginResult{}, err
	}

	if !acc.IsVerified {
		return LoginResult{}, domain.ErrNotVerified
	}

	if err = s.hasher.Compare(acc.PasswordHash, []byte(password)); err != nil {
		return LoginResult{}, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(acc.ID, acc.Role)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	return LoginResult{Message: MessageLoggedIn, Token: token, Account: acc.Summary()}, nil
}

// Whoami resolves a session token to the account it was issued for.
func (s *Service) Whoami(ctx context.Context, token string) (domain.Summary, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return domain.Summary{}, domain.ErrInvalidToken
	}

	id, err := claims.AccountID()
	if err != nil {
		return domain.Summary{}, domain.ErrInvalidToken
	}

	acc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.Summary{}, domain.ErrAccountNotFound
		}
		return domain.Summary{}, fmt.Errorf("find account: %w", err)
	}

	return acc.Summary(), nil
}

func (s *Service) find(ctx context.Context, phone string) (domain.Account, error) {
	acc, err := s.repo.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.Account{}, domain.ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("find account: %w", err)
	}

	return acc, nil
}

func (s *Service) deliver(ctx context.Context, phone, code string) error {
	sendCtx, cancel := context.WithTimeout(ctx, s.deliveryTimeout)
	defer cancel()

	return s.sender.Send(sendCtx, phone, VerificationText(code))
}

// rollback deletes an account whose code could not be delivered. It runs even
// when the request context is already cancelled.
func (s *Service) rollback(ctx context.Context, id uuid.UUID) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	if err := s.repo.Delete(delCtx, id); err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
		s.logger.ErrorContext(ctx, "rollback of undeliverable account failed", "account_id", id, "error", err)
	}
}

func (s *Service) observe(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = domain.Kind(err)
	}
	s.metrics.ObserveOperation(operation, outcome)
}

// VerificationText is the SMS body carrying code.
func VerificationText(code string) string {
	return fmt.Sprintf("Your verification code is %s. It is valid for %d minutes.", code, int(CodeTTL.Minutes()))
}

func operationFailed(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrOperationFailed, step, err)
}

func codesEqual(stored, provided string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(provided)) == 1
}

func isValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}
