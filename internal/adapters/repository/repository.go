package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kvetinski/identity/internal/domain"
	"github.com/kvetinski/identity/internal/telemetry"
)

const uniqueViolation = "23505"

const accountColumns = `id, name, phone_number, role, password_hash, is_verified,
		pending_code, pending_code_expires_at, created_at, updated_at`

type Repository struct {
	db      *sql.DB
	metrics *telemetry.Metrics
}

func New(db *sql.DB) *Repository {
	return NewWithMetrics(db, nil)
}

func NewWithMetrics(db *sql.DB, metrics *telemetry.Metrics) *Repository {
	return &Repository{
		db:      db,
		metrics: metrics,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var (
		a         domain.Account
		role      string
		code      sql.NullString
		expiresAt sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.Name, &a.PhoneNumber, &role, &a.PasswordHash, &a.IsVerified,
		&code, &expiresAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.Account{}, err
	}

	a.Role = domain.Role(role)
	if code.Valid && expiresAt.Valid {
		a.Pending = &domain.PendingCode{Code: code.String, ExpiresAt: expiresAt.Time}
	}

	return a, nil
}

func pendingArgs(p *domain.PendingCode) (sql.NullString, sql.NullTime) {
	if p == nil {
		return sql.NullString{}, sql.NullTime{}
	}

	return sql.NullString{String: p.Code, Valid: true}, sql.NullTime{Time: p.ExpiresAt, Valid: true}
}

func (r *Repository) FindByPhone(ctx context.Context, phone string) (domain.Account, error) {
	start := time.Now()
	status := "ok"
	defer func() {
		r.metrics.ObserveStore("postgres", "find_by_phone", status, time.Since(start))
	}()

	q := `SELECT ` + accountColumns + ` FROM accounts WHERE phone_number = $1`

	a, err := scanAccount(r.db.QueryRowContext(ctx, q, phone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			status = "not_found"
			return domain.Account{}, domain.ErrAccountNotFound
		}

		status = "error"
		return domain.Account{}, fmt.Errorf("find account by phone: %w", err)
	}

	return a, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	start := time.Now()
	status := "ok"
	defer func() {
		r.metrics.ObserveStore("postgres", "find_by_id", status, time.Since(start))
	}()

	q := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	a, err := scanAccount(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			status = "not_found"
			return domain.Account{}, domain.ErrAccountNotFound
		}

		status = "error"
		return domain.Account{}, fmt.Errorf("find account by id: %w", err)
	}

	return a, nil
}

// Insert is a conditional insert on phone_number: a conflicting row makes
// RETURNING yield nothing, which is reported as ErrDuplicateAccount.
func (r *Repository) Insert(ctx context.Context, acc domain.Account) (domain.Account, error) {
	start := time.Now()
	status := "ok"
	defer func() {
		r.metrics.ObserveStore("postgres", "insert", status, time.Since(start))
	}()

	q := `
		INSERT INTO accounts (id, name, phone_number, role, password_hash, is_verified,
			pending_code, pending_code_expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))
		ON CONFLICT (phone_number) DO NOTHING
		RETURNING ` + accountColumns

	createdAt := sql.NullTime{Time: acc.CreatedAt, Valid: !acc.CreatedAt.IsZero()}
	code, expiresAt := pendingArgs(acc.Pending)

	a, err := scanAccount(r.db.QueryRowContext(ctx, q,
		uuid.New(), acc.Name, acc.PhoneNumber, string(acc.Role), acc.PasswordHash, acc.IsVerified,
		code, expiresAt, createdAt,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			status = "conflict"
			return domain.Account{}, domain.ErrDuplicateAccount
		}

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			status = "conflict"
			return domain.Account{}, domain.ErrDuplicateAccount
		}

		status = "error"
		return domain.Account{}, fmt.Errorf("insert account: %w", err)
	}

	return a, nil
}

func (r *Repository) Update(ctx context.Context, acc domain.Account) (domain.Account, error) {
	start := time.Now()
	status := "ok"
	defer func() {
		r.metrics.ObserveStore("postgres", "update", status, time.Since(start))
	}()

	q := `
		UPDATE accounts
		SET name = $2,
		    role = $3,
		    password_hash = $4,
		    is_verified = $5,
		    pending_code = $6,
		    pending_code_expires_at = $7,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + accountColumns

	code, expiresAt := pendingArgs(acc.Pending)

	a, err := scanAccount(r.db.QueryRowContext(ctx, q,
		acc.ID, acc.Name, string(acc.Role), acc.PasswordHash, acc.IsVerified, code, expiresAt,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			status = "not_found"
			return domain.Account{}, domain.ErrAccountNotFound
		}

		status = "error"
		return domain.Account{}, fmt.Errorf("update account: %w", err)
	}

	return a, nil
}

// Delete removes the row so the phone number can be registered again.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	status := "ok"
	defer func() {
		r.metrics.ObserveStore("postgres", "delete", status, time.Since(start))
	}()

	const q = `DELETE FROM accounts WHERE id = $1`

	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		status = "error"
		return fmt.Errorf("delete account: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		status = "error"
		return fmt.Errorf("delete account rows affected: %w", err)
	}

	if rows == 0 {
		status = "not_found"
		return domain.ErrAccountNotFound
	}

	return nil
}
