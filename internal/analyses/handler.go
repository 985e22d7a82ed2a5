package analyses

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"legaldoc-backend/internal/documents"
	"legaldoc-backend/internal/llm"
	"legaldoc-backend/internal/shared/server/middleware"
	"legaldoc-backend/internal/shared/server/respond"
	"legaldoc-backend/internal/shared/telemetry"
)

const unavailableMessage = "analysis temporarily unavailable"

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analysis/analyze/:documentId", h.analyze)
	rg.POST("/analysis/question/:documentId", h.question)
	rg.GET("/analysis/", h.list)
	rg.GET("/analysis/:id", h.get)
	rg.POST("/analysis/:id/feedback", h.feedback)
}

type analyzeRequest struct {
	AnalysisType string   `json:"analysis_type"`
	Language     string   `json:"language"`
	FocusAreas   []string `json:"focus_areas"`
}

type questionRequest struct {
	Question string `json:"question"`
	Language string `json:"language"`
}

type feedbackRequest struct {
	Rating   *int   `json:"rating"`
	Feedback string `json:"feedback"`
}

func (h *Handler) analyze(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("documentId")
	c.Set(middleware.DocumentIDKey, documentID)

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Validation(c, "invalid JSON body", nil)
		return
	}

	analysis, created, err := h.Svc.Analyze(requestContext(c), userID, documentID, AnalyzeRequest{
		AnalysisType: req.AnalysisType,
		Language:     req.Language,
		FocusAreas:   req.FocusAreas,
		RequestID:    middleware.ClientRequestID(c),
	})
	if analysis.ID != "" {
		c.Set(middleware.AnalysisIDKey, analysis.ID)
	}
	if err != nil {
		h.fail(c, analysis, err)
		return
	}
	respond.JSON(c, statusFor(created), toResponse(analysis))
}

func (h *Handler) question(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("documentId")
	c.Set(middleware.DocumentIDKey, documentID)

	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Validation(c, "invalid JSON body", nil)
		return
	}

	analysis, created, err := h.Svc.Ask(requestContext(c), userID, documentID, QuestionRequest{
		Question:  req.Question,
		Language:  req.Language,
		RequestID: middleware.ClientRequestID(c),
	})
	if analysis.ID != "" {
		c.Set(middleware.AnalysisIDKey, analysis.ID)
	}
	if err != nil {
		h.fail(c, analysis, err)
		return
	}
	respond.JSON(c, statusFor(created), QuestionResponse{
		AnalysisID:      analysis.ID,
		Question:        analysis.Question,
		Answer:          analysis.Answer,
		ConfidenceScore: analysis.ConfidenceScore,
		Status:          analysis.Status,
		ErrorCode:       analysis.ErrorCode,
		ErrorMessage:    analysis.ErrorMessage,
	})
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	analysisID := c.Param("id")
	c.Set(middleware.AnalysisIDKey, analysisID)

	analysis, err := h.Svc.Get(c.Request.Context(), userID, analysisID)
	if err != nil {
		h.fail(c, Analysis{}, err)
		return
	}
	respond.OK(c, toResponse(analysis))
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	filter := ListFilter{
		Limit:        defaultListLimit,
		DocumentID:   c.Query("document_id"),
		AnalysisType: c.Query("analysis_type"),
	}
	if v := c.Query("skip"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			respond.Validation(c, "skip must be a non-negative integer", nil)
			return
		}
		filter.Skip = parsed
	}
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > maxListLimit {
			respond.Validation(c, "limit must be between 1 and 1000", nil)
			return
		}
		filter.Limit = parsed
	}

	items, total, err := h.Svc.List(c.Request.Context(), userID, filter)
	if err != nil {
		h.fail(c, Analysis{}, err)
		return
	}
	out := make([]AnalysisResponse, 0, len(items))
	for _, a := range items {
		out = append(out, toResponse(a))
	}
	respond.OK(c, respond.Page[AnalysisResponse]{Items: out, Total: total, Skip: filter.Skip, Limit: filter.Limit})
}

// feedback accepts a JSON body or rating/feedback query parameters.
func (h *Handler) feedback(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	analysisID := c.Param("id")
	c.Set(middleware.AnalysisIDKey, analysisID)

	var req feedbackRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Validation(c, "invalid JSON body", nil)
			return
		}
	}
	if req.Rating == nil {
		if v := c.Query("rating"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				respond.Validation(c, "rating must be an integer", nil)
				return
			}
			req.Rating = &parsed
		}
		if req.Feedback == "" {
			req.Feedback = c.Query("feedback")
		}
	}
	if req.Rating == nil {
		respond.Validation(c, "rating is required", nil)
		return
	}

	if _, err := h.Svc.Feedback(c.Request.Context(), userID, analysisID, *req.Rating, req.Feedback); err != nil {
		h.fail(c, Analysis{}, err)
		return
	}
	respond.OK(c, gin.H{"message": "Feedback submitted successfully"})
}

func (h *Handler) fail(c *gin.Context, analysis Analysis, err error) {
	details := gin.H{}
	if analysis.ID != "" {
		details["analysisId"] = analysis.ID
		details["status"] = analysis.Status
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, documents.ErrNotFound):
		respond.NotFound(c, "not found")
	case errors.Is(err, ErrInvalidInput):
		respond.Validation(c, err.Error(), nil)
	case errors.Is(err, ErrDocumentNotReady):
		respond.Validation(c, err.Error(), nil)
	case errors.Is(err, ErrRequestIDReused):
		respond.Error(c, http.StatusConflict, respond.CodeConflict, err.Error(), nil)
	case errors.Is(err, llm.ErrTimeout):
		respond.Error(c, http.StatusGatewayTimeout, respond.CodeAITimeout, unavailableMessage, details)
	case errors.Is(err, llm.ErrUnavailable):
		respond.Error(c, http.StatusBadGateway, respond.CodeAIUnavailable, unavailableMessage, details)
	case errors.Is(err, context.Canceled):
		// client is gone; nothing useful can be written back
		c.Abort()
	default:
		telemetry.Error("analysis.request_failed", map[string]any{"path": c.FullPath(), "error": err.Error()})
		respond.Internal(c)
	}
}

func requestContext(c *gin.Context) context.Context {
	return WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
}

func statusFor(created bool) int {
	if created {
		return http.StatusCreated
	}
	return http.StatusOK
}
