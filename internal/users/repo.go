package users

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrSubjectTaken = errors.New("account linked to another identity")
)

type Repo interface {
	// Create inserts a new user. Emails are unique case-insensitively.
	Create(ctx context.Context, user User) error
	GetBySubject(ctx context.Context, subject string) (User, error)
	// LinkSubject attaches an external identity to a user that has none.
	LinkSubject(ctx context.Context, userID, subject string, at time.Time) error
	GetByID(ctx context.Context, userID string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	UpdateProfile(ctx context.Context, user User) error
	TouchLogin(ctx context.Context, userID string, at time.Time) error
	IncrementDocumentsProcessed(ctx context.Context, userID string) error
	IncrementAPICalls(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID string) error
}
