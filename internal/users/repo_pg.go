package users

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type PGRepo struct {
	DB *sql.DB
}

const (
	uniqueViolation = "23505"
	subjectIndex    = "users_auth_subject_idx"
)

const selectUser = `
SELECT id, email, full_name, hashed_password, auth_provider, auth_subject, is_active, company, role,
       preferred_language, documents_processed, api_calls_count, last_login, created_at, updated_at
FROM users`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var (
		user      User
		hash      sql.NullString
		subject   sql.NullString
		company   sql.NullString
		role      sql.NullString
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&hash,
		&user.AuthProvider,
		&subject,
		&user.IsActive,
		&company,
		&role,
		&user.PreferredLanguage,
		&user.DocumentsProcessed,
		&user.APICallsCount,
		&lastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	if hash.Valid {
		user.PasswordHash = hash.String
	}
	if subject.Valid {
		user.AuthSubject = subject.String
	}
	if company.Valid {
		user.Company = company.String
	}
	if role.Valid {
		user.Role = role.String
	}
	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}
	return user, nil
}

func (r *PGRepo) Create(ctx context.Context, user User) error {
	const query = `
INSERT INTO users (id, email, full_name, hashed_password, auth_provider, auth_subject, is_active, company, role,
                   preferred_language, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.DB.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.FullName,
		nullableString(user.PasswordHash),
		user.AuthProvider,
		nullableString(user.AuthSubject),
		user.IsActive,
		nullableString(user.Company),
		nullableString(user.Role),
		user.PreferredLanguage,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if pgErr, ok := uniqueViolationErr(err); ok {
		if pgErr.ConstraintName == subjectIndex {
			return ErrSubjectTaken
		}
		return ErrEmailTaken
	}
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, selectUser+`
WHERE id = $1
LIMIT 1`, userID))
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, selectUser+`
WHERE LOWER(email) = LOWER($1)
LIMIT 1`, email))
}

func (r *PGRepo) GetBySubject(ctx context.Context, subject string) (User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, selectUser+`
WHERE auth_subject = $1
LIMIT 1`, subject))
}

// LinkSubject only claims rows with no subject, so an existing link is never overwritten.
func (r *PGRepo) LinkSubject(ctx context.Context, userID, subject string, at time.Time) error {
	const query = `
UPDATE users SET auth_subject = $1, updated_at = $2
WHERE id = $3 AND (auth_subject IS NULL OR auth_subject = $1)`
	err := r.execOne(ctx, query, subject, at, userID)
	if _, ok := uniqueViolationErr(err); ok {
		return ErrSubjectTaken
	}
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.GetByID(ctx, userID); getErr == nil {
			return ErrSubjectTaken
		}
	}
	return err
}

func (r *PGRepo) UpdateProfile(ctx context.Context, user User) error {
	const query = `
UPDATE users
SET full_name = $1, company = $2, role = $3, preferred_language = $4, updated_at = $5
WHERE id = $6`
	return r.execOne(ctx, query,
		user.FullName,
		nullableString(user.Company),
		nullableString(user.Role),
		user.PreferredLanguage,
		user.UpdatedAt,
		user.ID,
	)
}

func (r *PGRepo) TouchLogin(ctx context.Context, userID string, at time.Time) error {
	return r.execOne(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at, userID)
}

func (r *PGRepo) IncrementDocumentsProcessed(ctx context.Context, userID string) error {
	return r.execOne(ctx, `UPDATE users SET documents_processed = documents_processed + 1 WHERE id = $1`, userID)
}

func (r *PGRepo) IncrementAPICalls(ctx context.Context, userID string) error {
	return r.execOne(ctx, `UPDATE users SET api_calls_count = api_calls_count + 1 WHERE id = $1`, userID)
}

// Delete removes the user row; documents and analyses cascade.
func (r *PGRepo) Delete(ctx context.Context, userID string) error {
	return r.execOne(ctx, `DELETE FROM users WHERE id = $1`, userID)
}

func (r *PGRepo) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func uniqueViolationErr(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr, true
	}
	return nil, false
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ Repo = (*PGRepo)(nil)
