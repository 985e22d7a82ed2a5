package analyses

import (
	"context"
	"time"
)

// Repo persists analyses. Reads and feedback writes are scoped to the owning user.
type Repo interface {
	// Create inserts a new analysis; ErrDuplicateRequest when (user, request id) already exists.
	Create(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, userID, analysisID string) (Analysis, error)
	GetByRequestID(ctx context.Context, userID, requestID string) (Analysis, error)
	List(ctx context.Context, userID string, filter ListFilter) ([]Analysis, int, error)
	UpdateFeedback(ctx context.Context, userID, analysisID string, rating int, feedback string, at time.Time) error
	DeleteByDocument(ctx context.Context, documentID string) error
	DeleteByUser(ctx context.Context, userID string) error
	CountByUser(ctx context.Context, userID string) (int, error)
}
