package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"legaldoc-backend/internal/shared/auth"
	"legaldoc-backend/internal/shared/config"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
}

func newTestRouter(t *testing.T, perMinute int) (*gin.Engine, *auth.Issuer) {
	t.Helper()
	issuer, err := auth.NewIssuer("router-secret", time.Hour, false)
	require.NoError(t, err)
	cfg := config.Defaults()
	cfg.RateLimitPerMinute = perMinute
	r := NewRouter(RouterDeps{
		Config:   cfg,
		Issuer:   issuer,
		Denylist: auth.NewMemoryDenylist(),
		Handlers: []RouteRegistrar{pingHandler{}, nil},
	})
	return r, issuer
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	r, _ := newTestRouter(t, 60)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"healthy"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	r, issuer := newTestRouter(t, 60)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _, err := issuer.Sign("user-1", "u@example.com", "")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRateLimitPerUser(t *testing.T) {
	r, issuer := newTestRouter(t, 2)
	token, _, err := issuer.Sign("user-1", "u@example.com", "")
	require.NoError(t, err)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestHealthReportsDatabaseDown(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()
	mock.ExpectPing().WillReturnError(http.ErrHandlerTimeout)

	r := NewRouter(RouterDeps{Config: config.Defaults(), DB: sqlDB})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAddr(t *testing.T) {
	require.Equal(t, ":8080", Addr(""))
	require.Equal(t, ":9000", Addr("9000"))
	require.Equal(t, ":9000", Addr(":9000"))
}
