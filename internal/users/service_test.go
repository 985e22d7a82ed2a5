package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateRejectsDuplicateEmailCaseInsensitive(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	user, err := svc.Create(ctx, "Ann@Example.com", "Ann", "hash", "")
	require.NoError(t, err)
	require.Equal(t, "ann@example.com", user.Email)
	require.Equal(t, ProviderPassword, user.AuthProvider)
	require.True(t, user.IsActive)

	_, err = svc.Create(ctx, "ann@example.COM", "Other", "hash", "")
	require.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Create(ctx, "  ", "Nobody", "hash", "")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestResolveExternalKeysOnSubject(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	id := ExternalIdentity{Provider: ProviderGoogle, Subject: "sub-1", Email: "Bob@example.com", EmailVerified: true, FullName: "Bob"}
	first, err := svc.ResolveExternal(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "bob@example.com", first.Email)
	require.Equal(t, ProviderGoogle, first.AuthProvider)
	require.Equal(t, "google:sub-1", first.AuthSubject)
	require.Empty(t, first.PasswordHash)

	// The provider may later report a different email for the same subject.
	id.Email = "robert@example.com"
	again, err := svc.ResolveExternal(ctx, id)
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)

	_, err = svc.ResolveExternal(ctx, ExternalIdentity{Provider: ProviderGoogle, Email: "x@example.com", EmailVerified: true})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestResolveExternalLinksOnlyVerifiedEmail(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	owner, err := svc.Create(ctx, "ann@example.com", "Ann", "hash", "")
	require.NoError(t, err)

	_, err = svc.ResolveExternal(ctx, ExternalIdentity{Provider: ProviderGoogle, Subject: "attacker", Email: "ann@example.com"})
	require.ErrorIs(t, err, ErrEmailUnverified)
	stored, err := svc.GetByID(ctx, owner.ID)
	require.NoError(t, err)
	require.Empty(t, stored.AuthSubject)

	linked, err := svc.ResolveExternal(ctx, ExternalIdentity{Provider: ProviderGoogle, Subject: "ann-sub", Email: "ANN@example.com", EmailVerified: true})
	require.NoError(t, err)
	require.Equal(t, owner.ID, linked.ID)
	require.Equal(t, "hash", linked.PasswordHash)

	_, err = svc.ResolveExternal(ctx, ExternalIdentity{Provider: ProviderGoogle, Subject: "other-sub", Email: "ann@example.com", EmailVerified: true})
	require.ErrorIs(t, err, ErrSubjectTaken)
}

func TestIsActive(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	user, err := svc.Create(ctx, "ann@example.com", "Ann", "hash", "")
	require.NoError(t, err)
	active, err := svc.IsActive(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, active)

	user.IsActive = false
	repo.users[user.ID] = user
	active, err = svc.IsActive(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, active)

	active, err = svc.IsActive(ctx, "missing")
	require.NoError(t, err)
	require.False(t, active)
}

func TestUpdateProfileAppliesOnlyProvidedFields(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	user, err := svc.Create(ctx, "ann@example.com", "Ann", "hash", "")
	require.NoError(t, err)

	company := "Acme"
	lang := "es"
	updated, err := svc.UpdateProfile(ctx, user.ID, ProfileUpdate{Company: &company, PreferredLanguage: &lang})
	require.NoError(t, err)
	require.Equal(t, "Ann", updated.FullName)
	require.Equal(t, "Acme", updated.Company)
	require.Equal(t, "es", updated.PreferredLanguage)

	long := string(make([]byte, maxFieldLen+1))
	_, err = svc.UpdateProfile(ctx, user.ID, ProfileUpdate{Role: &long})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UpdateProfile(ctx, "missing", ProfileUpdate{Company: &company})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStatsCombinesCountersAndUsage(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()
	svc.CountDocuments = func(context.Context, string) (int, error) { return 3, nil }
	svc.CountAnalyses = func(context.Context, string) (int, error) { return 5, nil }

	user, err := svc.Create(ctx, "ann@example.com", "Ann", "hash", "")
	require.NoError(t, err)
	require.NoError(t, svc.IncrementDocumentsProcessed(ctx, user.ID))
	require.NoError(t, svc.IncrementAPICalls(ctx, user.ID))
	require.NoError(t, svc.IncrementAPICalls(ctx, user.ID))

	login := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return login }
	svc.RecordLogin(ctx, user.ID)

	stats, err := svc.Stats(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stats.DocumentsProcessed)
	require.Equal(t, 2, stats.APICallsCount)
	require.Equal(t, 3, stats.Documents)
	require.Equal(t, 5, stats.Analyses)
	require.NotNil(t, stats.LastLogin)
	require.True(t, login.Equal(*stats.LastLogin))
}
