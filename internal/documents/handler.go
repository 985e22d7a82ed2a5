package documents

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"legaldoc-backend/internal/extract"
	"legaldoc-backend/internal/shared/server/middleware"
	"legaldoc-backend/internal/shared/server/respond"
	"legaldoc-backend/internal/shared/telemetry"
)

// multipart framing on top of the file itself
const formOverhead = 1 << 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents/upload", h.upload)
	rg.GET("/documents/", h.list)
	rg.GET("/documents/:id", h.get)
	rg.GET("/documents/:id/download", h.download)
	rg.DELETE("/documents/:id", h.delete)
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Svc.maxFileSize()+formOverhead)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.Validation(c, ErrFileTooLarge.Error(), nil)
			return
		}
		respond.Validation(c, "file is required", nil)
		return
	}
	if fileHeader.Size > h.Svc.maxFileSize() {
		respond.Validation(c, ErrFileTooLarge.Error(), gin.H{"maxBytes": h.Svc.maxFileSize()})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Validation(c, "unable to read file", nil)
		return
	}
	defer file.Close()

	doc, err := h.Svc.Upload(c.Request.Context(), userID, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file)
	if doc.ID != "" {
		c.Set(middleware.DocumentIDKey, doc.ID)
	}
	if err != nil {
		details := gin.H{}
		if doc.ID != "" {
			details["documentId"] = doc.ID
			details["status"] = doc.Status
		}
		switch {
		case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnsupportedExt), errors.Is(err, ErrFileTooLarge):
			respond.Validation(c, err.Error(), nil)
		case errors.Is(err, extract.ErrUnsupportedFormat):
			respond.Error(c, http.StatusUnprocessableEntity, respond.CodeUnsupportedFormat, err.Error(), details)
		case errors.Is(err, extract.ErrCorruptFile):
			respond.Error(c, http.StatusUnprocessableEntity, respond.CodeCorruptFile, err.Error(), details)
		default:
			telemetry.Error("documents.upload_failed", map[string]any{"user_id": userID, "error": err.Error()})
			respond.Internal(c)
		}
		return
	}

	respond.Created(c, toResponse(doc))
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("id")
	c.Set(middleware.DocumentIDKey, documentID)

	doc, err := h.Svc.Get(c.Request.Context(), userID, documentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, toDetailResponse(doc))
}

func (h *Handler) download(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("id")
	c.Set(middleware.DocumentIDKey, documentID)

	doc, rc, err := h.Svc.Open(c.Request.Context(), userID, documentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer rc.Close()

	name := doc.OriginalFilename
	if name == "" {
		name = doc.FileName
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	c.Header("Content-Type", doc.MimeType)
	if doc.SizeBytes > 0 {
		c.Header("Content-Length", strconv.FormatInt(doc.SizeBytes, 10))
	}
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		telemetry.Warn("documents.download_interrupted", map[string]any{"document_id": doc.ID, "error": err.Error()})
	}
}

func (h *Handler) delete(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("id")
	c.Set(middleware.DocumentIDKey, documentID)

	if err := h.Svc.Delete(c.Request.Context(), userID, documentID); err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, gin.H{"message": "Document deleted successfully"})
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	filter := ListFilter{Skip: 0, Limit: defaultListLimit, Status: Status(c.Query("status_filter"))}
	if filter.Status == "" {
		filter.Status = Status(c.Query("status"))
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

	docs, total, err := h.Svc.List(c.Request.Context(), userID, filter)
	if err != nil {
		h.fail(c, err)
		return
	}

	items := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toResponse(doc))
	}
	respond.OK(c, respond.Page[DocumentResponse]{Items: items, Total: total, Skip: filter.Skip, Limit: filter.Limit})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.NotFound(c, "document not found")
	case errors.Is(err, ErrInvalidInput):
		respond.Validation(c, err.Error(), nil)
	default:
		telemetry.Error("documents.request_failed", map[string]any{"path": c.FullPath(), "error": err.Error()})
		respond.Internal(c)
	}
}
