package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"legaldoc-backend/internal/shared/auth"
)

func newAuthRouter(t *testing.T) (*gin.Engine, *auth.Issuer, *auth.MemoryDenylist) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	issuer, err := auth.NewIssuer("test-secret", time.Minute, false)
	require.NoError(t, err)
	deny := auth.NewMemoryDenylist()

	router := gin.New()
	router.Use(Auth(AuthConfig{
		Issuer:      issuer,
		Denylist:    deny,
		PublicPaths: []string{"/auth/login", "/auth/google/"},
	}))
	router.GET("/documents/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": UserIDFromContext(c)})
	})
	router.POST("/auth/login", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/auth/google/start", func(c *gin.Context) {
		c.Status(http.StatusFound)
	})
	router.OPTIONS("/documents/", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router, issuer, deny
}

func TestAuthAllowsOptionsWithoutIdentity(t *testing.T) {
	router, _, _ := newAuthRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/documents/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusNoContent, resp.Code)
}

func TestAuthSkipsPublicPaths(t *testing.T) {
	router, _, _ := newAuthRouter(t)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/auth/google/start", nil))
	require.Equal(t, http.StatusFound, resp.Code)
}

func TestAuthRejectsMissingAndMalformedTokens(t *testing.T) {
	router, _, _ := newAuthRouter(t)

	tests := map[string]string{
		"missing":   "",
		"no bearer": "Token abc",
		"empty":     "Bearer ",
		"garbage":   "Bearer abc.def.ghi",
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/documents/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			require.Equal(t, http.StatusUnauthorized, resp.Code)
		})
	}
}

func TestAuthAcceptsValidTokenAndRejectsRevoked(t *testing.T) {
	router, issuer, deny := newAuthRouter(t)
	token, claims, err := issuer.Sign("user-1", "u@example.com", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/documents/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "user-1")

	require.NoError(t, deny.Revoke(context.Background(), claims.ID, time.Minute))

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

type userSet map[string]bool

func (u userSet) IsActive(_ context.Context, userID string) (bool, error) {
	return u[userID], nil
}

func TestAuthRejectsInactiveOrDeletedUsers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	issuer, err := auth.NewIssuer("test-secret", time.Minute, false)
	require.NoError(t, err)

	router := gin.New()
	router.Use(Auth(AuthConfig{
		Issuer: issuer,
		Users:  userSet{"active": true, "disabled": false},
	}))
	router.GET("/documents/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for user, want := range map[string]int{
		"active":   http.StatusOK,
		"disabled": http.StatusUnauthorized,
		"deleted":  http.StatusUnauthorized,
	} {
		token, _, err := issuer.Sign(user, "", "")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/documents/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		require.Equal(t, want, resp.Code, user)
	}
}
