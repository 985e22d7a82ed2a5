package server

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"legaldoc-backend/internal/shared/auth"
	"legaldoc-backend/internal/shared/config"
	"legaldoc-backend/internal/shared/metrics"
	"legaldoc-backend/internal/shared/server/middleware"
	"legaldoc-backend/internal/shared/server/respond"
	"legaldoc-backend/internal/shared/storage/db"
)

// RouteRegistrar is implemented by every feature handler.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RouterDeps carries what NewRouter wires. Nil handlers are skipped.
type RouterDeps struct {
	Config   config.Config
	DB       *sql.DB
	Issuer   *auth.Issuer
	Denylist auth.Denylist
	Users    middleware.UserChecker
	Handlers []RouteRegistrar
	// Limiter is shared across routers in tests; nil builds a fresh one.
	Limiter *middleware.RateLimiter
}

// PublicPaths skip bearer authentication.
var PublicPaths = []string{
	"/auth/register",
	"/auth/login",
	"/auth/google/",
	"/health",
	"/metrics",
}

const (
	rateGroupDefault = "DEFAULT"
	rateGroupAuth    = "AUTH"
	healthTimeout    = 2 * time.Second
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	perMinute := deps.Config.RateLimitPerMinute
	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(middleware.AuthConfig{
			Issuer:      deps.Issuer,
			Denylist:    deps.Denylist,
			Users:       deps.Users,
			PublicPaths: PublicPaths,
		}),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				rateGroupDefault: middleware.PerMinute(perMinute),
				// Credential endpoints are anonymous, so they are keyed by IP and kept tighter.
				rateGroupAuth: middleware.PerMinute(max(1, perMinute/6)),
			},
			DefaultGroup: rateGroupDefault,
			GroupFor:     rateGroupFor,
			Limiter:      deps.Limiter,
		}),
	)

	r.GET("/health", healthHandler(deps.DB))
	r.GET("/metrics", metrics.Handler())

	root := r.Group("/")
	for _, h := range deps.Handlers {
		if h == nil {
			continue
		}
		h.RegisterRoutes(root)
	}
	return r
}

func rateGroupFor(c *gin.Context) string {
	path := c.Request.URL.Path
	switch {
	case path == "/health" || path == "/metrics":
		return "NONE"
	case strings.HasPrefix(path, "/auth/"):
		return rateGroupAuth
	default:
		return rateGroupDefault
	}
}

func healthHandler(database *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"status": "healthy", "database": "disabled"}
		if database != nil {
			if err := db.Ping(c.Request.Context(), database, healthTimeout); err != nil {
				respond.JSON(c, http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "unreachable"})
				return
			}
			body["database"] = "ok"
		}
		respond.OK(c, body)
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
