package users

import (
	"context"
	"strings"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[string]User)}
}

func (r *MemoryRepo) Create(ctx context.Context, user User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.findByEmailLocked(user.Email); ok {
		return ErrEmailTaken
	}
	if user.AuthSubject != "" {
		if _, ok := r.findBySubjectLocked(user.AuthSubject); ok {
			return ErrSubjectTaken
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.findByEmailLocked(email)
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryRepo) GetBySubject(ctx context.Context, subject string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.findBySubjectLocked(subject)
	if !ok || subject == "" {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryRepo) LinkSubject(ctx context.Context, userID, subject string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	if user.AuthSubject == subject {
		return nil
	}
	if user.AuthSubject != "" {
		return ErrSubjectTaken
	}
	if _, taken := r.findBySubjectLocked(subject); taken {
		return ErrSubjectTaken
	}
	user.AuthSubject = subject
	user.UpdatedAt = at
	r.users[userID] = user
	return nil
}

func (r *MemoryRepo) UpdateProfile(ctx context.Context, user User) error {
	return r.mutate(ctx, user.ID, func(u *User) {
		u.FullName = user.FullName
		u.Company = user.Company
		u.Role = user.Role
		u.PreferredLanguage = user.PreferredLanguage
		u.UpdatedAt = user.UpdatedAt
	})
}

func (r *MemoryRepo) TouchLogin(ctx context.Context, userID string, at time.Time) error {
	return r.mutate(ctx, userID, func(u *User) {
		u.LastLogin = &at
	})
}

func (r *MemoryRepo) IncrementDocumentsProcessed(ctx context.Context, userID string) error {
	return r.mutate(ctx, userID, func(u *User) {
		u.DocumentsProcessed++
	})
}

func (r *MemoryRepo) IncrementAPICalls(ctx context.Context, userID string) error {
	return r.mutate(ctx, userID, func(u *User) {
		u.APICallsCount++
	})
}

func (r *MemoryRepo) Delete(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return ErrNotFound
	}
	delete(r.users, userID)
	return nil
}

func (r *MemoryRepo) mutate(ctx context.Context, userID string, fn func(*User)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	fn(&user)
	r.users[userID] = user
	return nil
}

func (r *MemoryRepo) findByEmailLocked(email string) (User, bool) {
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return User{}, false
}

func (r *MemoryRepo) findBySubjectLocked(subject string) (User, bool) {
	for _, u := range r.users {
		if u.AuthSubject == subject {
			return u, true
		}
	}
	return User{}, false
}

var _ Repo = (*MemoryRepo)(nil)
