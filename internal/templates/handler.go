package templates

import (
	"github.com/gin-gonic/gin"

	"legaldoc-backend/internal/shared/server/respond"
)

// Handler exposes the read-only template catalog.
type Handler struct {
	Service *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Service: svc}
}

// RegisterRoutes wires template routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/templates/", h.list)
	rg.GET("/templates/:category", h.resolve)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.Service.List(c.Request.Context())
	if err != nil {
		respond.Internal(c)
		return
	}
	respond.OK(c, gin.H{"items": items, "total": len(items)})
}

func (h *Handler) resolve(c *gin.Context) {
	respond.OK(c, h.Service.Resolve(c.Request.Context(), c.Param("category")))
}
