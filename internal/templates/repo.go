package templates

import (
	"context"
	"time"
)

// Repo is the read-mostly template catalog.
type Repo interface {
	List(ctx context.Context) ([]Template, error)
	GetActiveByCategory(ctx context.Context, category string) (Template, error)
	MarkUsed(ctx context.Context, id string, at time.Time) error
	UpdateEffectiveness(ctx context.Context, id string, rating float64) error
}
