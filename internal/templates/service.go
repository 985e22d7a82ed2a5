package templates

import (
	"context"
	"errors"
	"strings"
	"time"

	"legaldoc-backend/internal/shared/telemetry"
)

// Service resolves analysis templates.
type Service struct {
	Repo Repo
	Now  func() time.Time
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo, Now: time.Now}
}

// Resolve returns the active template for category or the generic fallback. It never fails.
func (s *Service) Resolve(ctx context.Context, category string) Template {
	category = strings.TrimSpace(category)
	if category == "" || category == GeneralCategory || s.Repo == nil {
		return Fallback(category)
	}

	t, err := s.Repo.GetActiveByCategory(ctx, category)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			telemetry.Warn("templates.lookup_failed", map[string]any{"category": category, "error": err})
		}
		return Fallback(category)
	}

	if err := s.Repo.MarkUsed(ctx, t.ID, s.now()); err != nil {
		telemetry.Warn("templates.mark_used_failed", map[string]any{"template_id": t.ID, "error": err})
	} else {
		t.UsageCount++
	}
	return withDefaults(t)
}

// List returns the whole catalog.
func (s *Service) List(ctx context.Context) ([]Template, error) {
	if s.Repo == nil {
		return []Template{}, nil
	}
	items, err := s.Repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Template{}
	}
	return items, nil
}

// RecordRating folds a 1..5 user rating into the template's effectiveness score.
func (s *Service) RecordRating(ctx context.Context, templateID string, rating int) error {
	if s.Repo == nil || strings.TrimSpace(templateID) == "" {
		return nil
	}
	return s.Repo.UpdateEffectiveness(ctx, templateID, float64(rating))
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
