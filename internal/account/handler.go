package account

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"legaldoc-backend/internal/shared/auth"
	"legaldoc-backend/internal/shared/server/middleware"
	"legaldoc-backend/internal/shared/server/respond"
	"legaldoc-backend/internal/shared/telemetry"
)

type Handler struct {
	Svc *Service
	// Denylist revokes the caller's token once the account is gone. Optional.
	Denylist auth.Denylist
}

func NewHandler(svc *Service, denylist auth.Denylist) *Handler {
	return &Handler{Svc: svc, Denylist: denylist}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.DELETE("/users/me", h.deleteMe)
}

func (h *Handler) deleteMe(c *gin.Context) {
	userID := strings.TrimSpace(middleware.UserIDFromContext(c))
	if userID == "" {
		respond.Unauthorized(c)
		return
	}

	ctx := c.Request.Context()
	if err := h.Svc.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.NotFound(c, "user not found")
			return
		}
		telemetry.Error("account.delete_failed", map[string]any{"user_id": userID, "error": err.Error()})
		respond.Internal(c)
		return
	}

	if claims, ok := middleware.ClaimsFromContext(c); ok && h.Denylist != nil {
		if err := h.Denylist.Revoke(ctx, claims.ID, middleware.TokenRemaining(c)); err != nil {
			telemetry.Warn("account.revoke_failed", map[string]any{"user_id": userID, "error": err.Error()})
		}
	}
	respond.OK(c, gin.H{"message": "Account deleted"})
}
