package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	issuer, err := NewIssuer("secret", time.Minute, false)
	require.NoError(t, err)

	token, claims, err := issuer.Sign("user-1", "a@example.com", "Ann")
	require.NoError(t, err)
	require.NotEmpty(t, claims.ID)

	got, err := issuer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Subject)
	require.Equal(t, "a@example.com", got.Email)
	require.Equal(t, claims.ID, got.ID)
}

func TestVerifyRejectsExpiredAndForeignTokens(t *testing.T) {
	issuer, err := NewIssuer("secret", time.Minute, false)
	require.NoError(t, err)
	token, _, err := issuer.Sign("user-1", "", "")
	require.NoError(t, err)

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = issuer.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewIssuer("other", time.Minute, false)
	require.NoError(t, err)
	_, err = other.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = other.Verify("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuerRequiresSecretInProduction(t *testing.T) {
	_, err := NewIssuer("", time.Minute, true)
	require.ErrorIs(t, err, ErrMissingSecret)
}

func TestMemoryDenylist(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDenylist()
	now := time.Now()
	d.now = func() time.Time { return now }

	revoked, err := d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, d.Revoke(ctx, "jti-1", time.Minute))
	revoked, err = d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, err = d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)
}
