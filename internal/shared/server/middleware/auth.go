package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"legaldoc-backend/internal/shared/auth"
	"legaldoc-backend/internal/shared/server/respond"
	"legaldoc-backend/internal/shared/telemetry"
)

const (
	userIDKey    = "userId"
	userEmailKey = "userEmail"
	userNameKey  = "userName"
	claimsKey    = "tokenClaims"
)

// UserChecker reports whether a token subject still names an active account.
type UserChecker interface {
	IsActive(ctx context.Context, userID string) (bool, error)
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	Issuer   *auth.Issuer
	Denylist auth.Denylist
	// Users, when set, rejects tokens of deleted or deactivated accounts.
	Users UserChecker
	// PublicPaths are exact paths or prefixes ending in "/" that skip authentication.
	PublicPaths []string
}

// Auth validates bearer tokens and stores identity in context.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}
		if isPublicPath(c.Request.URL.Path, cfg.PublicPaths) {
			c.Next()
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok || cfg.Issuer == nil {
			respond.Unauthorized(c)
			return
		}

		claims, err := cfg.Issuer.Verify(token)
		if err != nil {
			respond.Unauthorized(c)
			return
		}

		if cfg.Denylist != nil {
			revoked, err := cfg.Denylist.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				telemetry.Error("auth.denylist_failed", map[string]any{"error": err})
				respond.Unauthorized(c)
				return
			}
			if revoked {
				respond.Unauthorized(c)
				return
			}
		}

		if cfg.Users != nil {
			active, err := cfg.Users.IsActive(c.Request.Context(), claims.Subject)
			if err != nil {
				telemetry.Error("auth.user_lookup_failed", map[string]any{"user_id": claims.Subject, "error": err.Error()})
				respond.Internal(c)
				return
			}
			if !active {
				respond.Unauthorized(c)
				return
			}
		}

		c.Set(userIDKey, claims.Subject)
		c.Set(claimsKey, claims)
		if claims.Email != "" {
			c.Set(userEmailKey, claims.Email)
		}
		if claims.Name != "" {
			c.Set(userNameKey, claims.Name)
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
	if token == "" {
		return "", false
	}
	return token, true
}

func isPublicPath(path string, public []string) bool {
	for _, p := range public {
		if strings.HasSuffix(p, "/") {
			if strings.HasPrefix(path, p) {
				return true
			}
			continue
		}
		if path == p {
			return true
		}
	}
	return false
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// UserEmailFromContext fetches the user email set by the auth middleware.
func UserEmailFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userEmailKey)
	if email, ok := val.(string); ok {
		return email
	}
	return ""
}

// ClaimsFromContext returns the verified token claims.
func ClaimsFromContext(c *gin.Context) (auth.Claims, bool) {
	if c == nil {
		return auth.Claims{}, false
	}
	val, ok := c.Get(claimsKey)
	if !ok {
		return auth.Claims{}, false
	}
	claims, ok := val.(auth.Claims)
	return claims, ok
}

// TokenRemaining returns how long the caller's token remains valid.
func TokenRemaining(c *gin.Context) time.Duration {
	claims, ok := ClaimsFromContext(c)
	if !ok || claims.ExpiresAt == nil {
		return 0
	}
	left := time.Until(claims.ExpiresAt.Time)
	if left < 0 {
		return 0
	}
	return left
}
