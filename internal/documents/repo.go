package documents

import (
	"context"
	"time"
)

// DocumentsRepo defines persistence operations for documents.
// Reads and deletes keyed by user are owner scoped: a foreign id is ErrNotFound.
type DocumentsRepo interface {
	Create(ctx context.Context, doc Document) error
	Update(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, userID, documentID string) (Document, error)
	List(ctx context.Context, userID string, filter ListFilter) ([]Document, int, error)
	Delete(ctx context.Context, userID, documentID string) error

	// ListStorageKeys returns the object keys of every document a user owns.
	ListStorageKeys(ctx context.Context, userID string) ([]string, error)
	// ListExpired returns documents whose expires_at is at or before now, oldest first.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]Document, error)
	// DeleteByID removes a document regardless of owner. Used by retention.
	DeleteByID(ctx context.Context, documentID string) error
}

// DependentsDeleter removes rows that reference a document.
// Postgres cascades on its own; the in-memory analyses store needs an explicit call.
type DependentsDeleter interface {
	DeleteByDocument(ctx context.Context, documentID string) error
}

// UsageRecorder counts processed documents per user.
type UsageRecorder interface {
	IncrementDocumentsProcessed(ctx context.Context, userID string) error
}
