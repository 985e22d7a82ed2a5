// Package auth issues and revokes sessions for password and Google logins.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	sharedauth "legaldoc-backend/internal/shared/auth"
	"legaldoc-backend/internal/shared/telemetry"
	"legaldoc-backend/internal/users"
)

const (
	minPasswordLen = 8
	// bcrypt ignores input beyond 72 bytes
	maxPasswordLen = 72
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("incorrect email or password")
)

// UserStore is the slice of the users service auth depends on.
type UserStore interface {
	Create(ctx context.Context, email, fullName, passwordHash, provider string) (users.User, error)
	ResolveExternal(ctx context.Context, id users.ExternalIdentity) (users.User, error)
	GetByEmail(ctx context.Context, email string) (users.User, error)
	RecordLogin(ctx context.Context, userID string)
}

// Session is an issued bearer token plus the user it belongs to.
type Session struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresIn   int        `json:"expires_in"`
	User        users.User `json:"user"`
}

// Service implements register, login and logout.
type Service struct {
	Users      UserStore
	Issuer     *sharedauth.Issuer
	Denylist   sharedauth.Denylist
	BcryptCost int
}

// Register creates a password account and signs the user in.
func (s *Service) Register(ctx context.Context, email, password, fullName string) (Session, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return Session{}, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	if len(password) < minPasswordLen {
		return Session{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}
	if len(password) > maxPasswordLen {
		return Session{}, fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, maxPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost())
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.Users.Create(ctx, addr.Address, fullName, string(hash), users.ProviderPassword)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrEmailTaken):
			return Session{}, ErrEmailExists
		case errors.Is(err, users.ErrInvalidInput):
			return Session{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return Session{}, err
	}
	telemetry.Info("auth.registered", map[string]any{"user_id": user.ID})
	return s.issue(ctx, user)
}

// Login checks a password and issues a token. Unknown emails, wrong passwords and
// inactive accounts are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !user.IsActive || user.PasswordHash == "" {
		return Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.issue(ctx, user)
}

// SignInExternal resolves an identity asserted by an external provider and issues a token.
func (s *Service) SignInExternal(ctx context.Context, id users.ExternalIdentity) (Session, error) {
	user, err := s.Users.ResolveExternal(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !user.IsActive {
		return Session{}, ErrInvalidCredentials
	}
	return s.issue(ctx, user)
}

// Logout revokes the token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, claims sharedauth.Claims) error {
	if s.Denylist == nil || claims.ID == "" {
		return nil
	}
	ttl := s.Issuer.Remaining(claims)
	if ttl <= 0 {
		return nil
	}
	if err := s.Denylist.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	telemetry.Info("auth.logged_out", map[string]any{"user_id": claims.Subject})
	return nil
}

func (s *Service) issue(ctx context.Context, user users.User) (Session, error) {
	token, _, err := s.Issuer.Sign(user.ID, user.Email, user.FullName)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	s.Users.RecordLogin(ctx, user.ID)
	return Session{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.Issuer.TTL().Seconds()),
		User:        user,
	}, nil
}

func (s *Service) cost() int {
	if s.BcryptCost > 0 {
		return s.BcryptCost
	}
	return bcrypt.DefaultCost
}
