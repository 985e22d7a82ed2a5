package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"legaldoc-backend/internal/shared/telemetry"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmailUnverified = errors.New("email not verified by provider")
)

const (
	defaultLanguage = "en"
	maxFieldLen     = 200
)

// Counter reports how many rows of one kind a user owns.
type Counter func(ctx context.Context, userID string) (int, error)

type Service struct {
	Repo Repo

	// Optional sources for Stats.
	CountDocuments Counter
	CountAnalyses  Counter

	Now func() time.Time
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// Create registers a new active user. The caller hashes the password.
func (s *Service) Create(ctx context.Context, email, fullName, passwordHash, provider string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	email = normalizeEmail(email)
	if email == "" {
		return User{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if provider == "" {
		provider = ProviderPassword
	}
	now := s.now()
	user := User{
		ID:                uuid.NewString(),
		Email:             email,
		FullName:          strings.TrimSpace(fullName),
		PasswordHash:      passwordHash,
		AuthProvider:      provider,
		IsActive:          true,
		PreferredLanguage: defaultLanguage,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// ResolveExternal maps an external identity to a user. A known subject wins. Otherwise a
// verified email links to the matching account, or a new account is created for it.
func (s *Service) ResolveExternal(ctx context.Context, id ExternalIdentity) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(id.Provider) == "" || strings.TrimSpace(id.Subject) == "" {
		return User{}, fmt.Errorf("%w: provider subject is required", ErrInvalidInput)
	}
	key := id.Key()
	user, err := s.Repo.GetBySubject(ctx, key)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	email := normalizeEmail(id.Email)
	if email == "" {
		return User{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if !id.EmailVerified {
		return User{}, ErrEmailUnverified
	}

	existing, err := s.Repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.Repo.LinkSubject(ctx, existing.ID, key, s.now()); err != nil {
			return User{}, err
		}
		existing.AuthSubject = key
		telemetry.Info("users.identity_linked", map[string]any{"user_id": existing.ID, "provider": id.Provider})
		return existing, nil
	case !errors.Is(err, ErrNotFound):
		return User{}, err
	}

	now := s.now()
	user = User{
		ID:                uuid.NewString(),
		Email:             email,
		FullName:          strings.TrimSpace(id.FullName),
		AuthProvider:      id.Provider,
		AuthSubject:       key,
		IsActive:          true,
		PreferredLanguage: defaultLanguage,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// IsActive reports whether userID names an active account. Unknown users are inactive.
func (s *Service) IsActive(ctx context.Context, userID string) (bool, error) {
	user, err := s.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.IsActive, nil
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, userID)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return User{}, ErrNotFound
	}
	return s.Repo.GetByEmail(ctx, email)
}

// RecordLogin stamps last_login. Failures are logged, not returned.
func (s *Service) RecordLogin(ctx context.Context, userID string) {
	if err := s.Repo.TouchLogin(ctx, userID, s.now()); err != nil {
		telemetry.Warn("users.touch_login_failed", map[string]any{"user_id": userID, "error": err.Error()})
	}
}

// UpdateProfile applies the non-nil fields of upd.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	apply := func(dst *string, src *string, field string) error {
		if src == nil {
			return nil
		}
		v := strings.TrimSpace(*src)
		if len(v) > maxFieldLen {
			return fmt.Errorf("%w: %s is too long", ErrInvalidInput, field)
		}
		*dst = v
		return nil
	}
	if err := apply(&user.FullName, upd.FullName, "fullName"); err != nil {
		return User{}, err
	}
	if err := apply(&user.Company, upd.Company, "company"); err != nil {
		return User{}, err
	}
	if err := apply(&user.Role, upd.Role, "role"); err != nil {
		return User{}, err
	}
	if err := apply(&user.PreferredLanguage, upd.PreferredLanguage, "preferredLanguage"); err != nil {
		return User{}, err
	}
	if user.PreferredLanguage == "" {
		user.PreferredLanguage = defaultLanguage
	}
	user.UpdatedAt = s.now()
	if err := s.Repo.UpdateProfile(ctx, user); err != nil {
		return User{}, err
	}
	telemetry.Info("users.profile_updated", map[string]any{"user_id": userID})
	return user, nil
}

// IncrementDocumentsProcessed counts a successfully processed upload.
func (s *Service) IncrementDocumentsProcessed(ctx context.Context, userID string) error {
	return s.Repo.IncrementDocumentsProcessed(ctx, userID)
}

// IncrementAPICalls counts a model call made on the user's behalf.
func (s *Service) IncrementAPICalls(ctx context.Context, userID string) error {
	return s.Repo.IncrementAPICalls(ctx, userID)
}

func (s *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{
		DocumentsProcessed: user.DocumentsProcessed,
		APICallsCount:      user.APICallsCount,
		MemberSince:        user.CreatedAt,
		LastLogin:          user.LastLogin,
	}
	if s.CountDocuments != nil {
		if stats.Documents, err = s.CountDocuments(ctx, userID); err != nil {
			return Stats{}, fmt.Errorf("count documents: %w", err)
		}
	}
	if s.CountAnalyses != nil {
		if stats.Analyses, err = s.CountAnalyses(ctx, userID); err != nil {
			return Stats{}, fmt.Errorf("count analyses: %w", err)
		}
	}
	return stats, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
