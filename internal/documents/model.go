package documents

import (
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("document not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrFileTooLarge   = errors.New("file exceeds the maximum allowed size")
	ErrUnsupportedExt = errors.New("unsupported file type")
	ErrNotProcessed   = errors.New("document has no extracted text")
)

// Status is the processing state of a document.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Document represents an uploaded document owned by a user.
type Document struct {
	ID               string
	UserID           string
	FileName         string
	OriginalFilename string
	FileType         string
	MimeType         string
	SizeBytes        int64
	StorageProvider  string
	StorageKey       string

	ExtractedText string
	PageCount     int
	WordCount     int

	Status                 Status
	DocumentType           string
	DocumentTypeConfidence float64
	ProcessingError        string

	RetentionDays int
	ExpiresAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ProcessedAt   *time.Time
}

// HasText reports whether extraction produced usable text.
func (d Document) HasText() bool {
	return d.Status == StatusCompleted && d.ExtractedText != ""
}

// ListFilter narrows a document listing.
type ListFilter struct {
	Skip   int
	Limit  int
	Status Status
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func (f ListFilter) normalized() ListFilter {
	if f.Skip < 0 {
		f.Skip = 0
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	return f
}
