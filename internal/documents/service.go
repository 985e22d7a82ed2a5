package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"legaldoc-backend/internal/extract"
	"legaldoc-backend/internal/shared/metrics"
	"legaldoc-backend/internal/shared/storage/object"
	"legaldoc-backend/internal/shared/telemetry"
	"legaldoc-backend/internal/shared/util"
)

const (
	defaultMaxFileSize   = 10 << 20
	defaultRetentionDays = 30
	purgeBatchSize       = 100
)

// Service contains business logic for documents.
type Service struct {
	Store object.ObjectStore
	Repo  DocumentsRepo

	// Dependents and Usage are optional.
	Dependents DependentsDeleter
	Usage      UsageRecorder

	StorageProvider string
	MaxFileSize     int64
	MaxPages        int
	RetentionDays   int
	Now             func() time.Time
}

// Upload validates, stores and extracts a file. One document row is written per call.
// When extraction fails the row is kept with status failed and the extraction error is returned
// together with that document.
func (s *Service) Upload(ctx context.Context, userID, fileName, mimeType string, r io.Reader) (Document, error) {
	if userID == "" {
		return Document{}, ErrInvalidInput
	}
	cleanName, err := util.SanitizeFileName(fileName)
	if err != nil {
		metrics.IncUploadRejected("invalid_name")
		return Document{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	format, ok := extract.FormatFromExtension(util.FileExtension(cleanName))
	if !ok {
		metrics.IncUploadRejected("unsupported_type")
		return Document{}, fmt.Errorf("%w: only .pdf, .docx and .txt files are accepted", ErrUnsupportedExt)
	}

	limit := s.maxFileSize()
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return Document{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		metrics.IncUploadRejected("too_large")
		return Document{}, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, limit)
	}
	if len(data) == 0 {
		metrics.IncUploadRejected("empty")
		return Document{}, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}

	storageKey, size, sniffed, err := s.Store.Save(ctx, userID, cleanName, bytes.NewReader(data))
	if err != nil {
		return Document{}, fmt.Errorf("store upload: %w", err)
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = sniffed
	}

	now := s.now()
	retention := s.retentionDays()
	expiresAt := now.AddDate(0, 0, retention)
	doc := Document{
		ID:               uuid.NewString(),
		UserID:           userID,
		FileName:         cleanName,
		OriginalFilename: fileName,
		FileType:         string(format),
		MimeType:         mimeType,
		SizeBytes:        size,
		StorageProvider:  s.storageProvider(),
		StorageKey:       storageKey,
		Status:           StatusUploaded,
		RetentionDays:    retention,
		ExpiresAt:        &expiresAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		if delErr := s.Store.Delete(context.WithoutCancel(ctx), storageKey); delErr != nil {
			telemetry.Warn("documents.orphan_object", map[string]any{"storage_key": storageKey, "error": delErr.Error()})
		}
		return Document{}, fmt.Errorf("create document: %w", err)
	}
	metrics.IncUpload()

	doc.Status = StatusProcessing
	doc.UpdatedAt = s.now()
	if err := s.Repo.Update(ctx, doc); err != nil {
		return doc, fmt.Errorf("mark processing: %w", err)
	}

	result, extractErr := extract.Extract(ctx, data, mimeType, cleanName, extract.Options{MaxPages: s.MaxPages})
	finished := s.now()
	doc.UpdatedAt = finished
	doc.ProcessedAt = &finished
	if extractErr != nil {
		doc.Status = StatusFailed
		doc.ProcessingError = extractErr.Error()
		// The row must reflect the failure even if the caller went away.
		if err := s.Repo.Update(context.WithoutCancel(ctx), doc); err != nil {
			telemetry.Error("documents.mark_failed", map[string]any{"document_id": doc.ID, "error": err.Error()})
		}
		metrics.IncUploadRejected(extractReason(extractErr))
		telemetry.Warn("documents.extract_failed", map[string]any{
			"document_id": doc.ID,
			"user_id":     userID,
			"file_type":   doc.FileType,
			"error":       extractErr.Error(),
		})
		return doc, extractErr
	}

	doc.ExtractedText = result.Text
	doc.PageCount = result.PageCount
	doc.WordCount = result.WordCount
	doc.DocumentType, doc.DocumentTypeConfidence = Classify(result.Text)
	doc.Status = StatusCompleted
	if err := s.Repo.Update(ctx, doc); err != nil {
		return doc, fmt.Errorf("store extraction: %w", err)
	}

	if s.Usage != nil {
		if err := s.Usage.IncrementDocumentsProcessed(ctx, userID); err != nil {
			telemetry.Warn("documents.usage_increment_failed", map[string]any{"user_id": userID, "error": err.Error()})
		}
	}

	telemetry.Info("documents.uploaded", map[string]any{
		"document_id":   doc.ID,
		"user_id":       userID,
		"file_type":     doc.FileType,
		"size_bytes":    doc.SizeBytes,
		"page_count":    doc.PageCount,
		"word_count":    doc.WordCount,
		"document_type": doc.DocumentType,
	})
	return doc, nil
}

// Get returns a document owned by the user.
func (s *Service) Get(ctx context.Context, userID, documentID string) (Document, error) {
	id, ok := parseID(documentID)
	if userID == "" || !ok {
		return Document{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, userID, id)
}

// List returns a page of the user's documents and the total matching count.
func (s *Service) List(ctx context.Context, userID string, filter ListFilter) ([]Document, int, error) {
	if userID == "" {
		return nil, 0, ErrInvalidInput
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}
	return s.Repo.List(ctx, userID, filter.normalized())
}

// Open streams the original bytes of a document owned by the user.
func (s *Service) Open(ctx context.Context, userID, documentID string) (Document, io.ReadCloser, error) {
	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return Document{}, nil, err
	}
	rc, err := s.Store.Open(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return Document{}, nil, ErrNotFound
		}
		return Document{}, nil, fmt.Errorf("open object: %w", err)
	}
	return doc, rc, nil
}

// Delete removes a document, its analyses and its stored object.
func (s *Service) Delete(ctx context.Context, userID, documentID string) error {
	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if s.Dependents != nil {
		if err := s.Dependents.DeleteByDocument(ctx, doc.ID); err != nil {
			return fmt.Errorf("delete analyses: %w", err)
		}
	}
	if err := s.Repo.Delete(ctx, userID, doc.ID); err != nil {
		return err
	}
	s.deleteObject(ctx, doc)
	telemetry.Info("documents.deleted", map[string]any{"document_id": doc.ID, "user_id": userID})
	return nil
}

// PurgeExpired deletes every document whose retention period has ended and returns how many were removed.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	now := s.now()
	purged := 0
	for {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		batch, err := s.Repo.ListExpired(ctx, now, purgeBatchSize)
		if err != nil {
			return purged, fmt.Errorf("list expired: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		removed := 0
		for _, doc := range batch {
			if s.Dependents != nil {
				if err := s.Dependents.DeleteByDocument(ctx, doc.ID); err != nil {
					return purged, fmt.Errorf("delete analyses: %w", err)
				}
			}
			if err := s.Repo.DeleteByID(ctx, doc.ID); err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return purged, fmt.Errorf("delete document %s: %w", doc.ID, err)
			}
			s.deleteObject(ctx, doc)
			removed++
		}
		purged += removed
		if len(batch) < purgeBatchSize || removed == 0 {
			break
		}
	}
	metrics.AddDocumentsPurged(purged)
	return purged, nil
}

func (s *Service) deleteObject(ctx context.Context, doc Document) {
	if doc.StorageKey == "" {
		return
	}
	if err := s.Store.Delete(ctx, doc.StorageKey); err != nil {
		telemetry.Warn("documents.object_delete_failed", map[string]any{
			"document_id": doc.ID,
			"storage_key": doc.StorageKey,
			"error":       err.Error(),
		})
	}
}

func extractReason(err error) string {
	switch {
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, extract.ErrCorruptFile):
		return "corrupt_file"
	default:
		return "extract_error"
	}
}

// parseID canonicalizes a path id. Anything that is not a UUID cannot name a row.
func parseID(raw string) (string, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) maxFileSize() int64 {
	if s.MaxFileSize <= 0 {
		return defaultMaxFileSize
	}
	return s.MaxFileSize
}

func (s *Service) retentionDays() int {
	if s.RetentionDays <= 0 {
		return defaultRetentionDays
	}
	return s.RetentionDays
}

func (s *Service) storageProvider() string {
	if s.StorageProvider == "" {
		return "local"
	}
	return s.StorageProvider
}
