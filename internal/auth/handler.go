package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"legaldoc-backend/internal/shared/server/middleware"
	"legaldoc-backend/internal/shared/server/respond"
	"legaldoc-backend/internal/shared/telemetry"
)

// Handler exposes register, login and logout.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches auth routes. Register and login must be public in the auth middleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/register", h.register)
	rg.POST("/auth/login", h.login)
	rg.POST("/auth/logout", h.logout)
}

type registerRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	FullName string `json:"full_name" form:"full_name"`
}

// loginRequest also accepts the OAuth2 password form, where the email travels as username.
type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		respond.Validation(c, "invalid request body", nil)
		return
	}
	session, err := h.Svc.Register(c.Request.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.Created(c, session)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		respond.Validation(c, "invalid request body", nil)
		return
	}
	email := req.Email
	if email == "" {
		email = req.Username
	}
	if email == "" || req.Password == "" {
		respond.Validation(c, "email and password are required", nil)
		return
	}
	session, err := h.Svc.Login(c.Request.Context(), email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, session)
}

func (h *Handler) logout(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		respond.Unauthorized(c)
		return
	}
	if err := h.Svc.Logout(c.Request.Context(), claims); err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, gin.H{"message": "Successfully logged out"})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Validation(c, err.Error(), nil)
	case errors.Is(err, ErrEmailExists):
		respond.Error(c, http.StatusConflict, "email_exists", "Email already registered", nil)
	case errors.Is(err, ErrInvalidCredentials):
		respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, ErrInvalidCredentials.Error(), nil)
	default:
		telemetry.Error("auth.request_failed", map[string]any{"path": c.FullPath(), "error": err.Error()})
		respond.Internal(c)
	}
}
