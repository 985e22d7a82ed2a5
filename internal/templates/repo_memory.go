package templates

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo keeps the catalog in process memory.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Template
}

// NewMemoryRepo builds a repo holding the given templates.
func NewMemoryRepo(seed []Template) *MemoryRepo {
	r := &MemoryRepo{data: make(map[string]Template, len(seed))}
	now := time.Now().UTC()
	for _, t := range seed {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
			t.UpdatedAt = now
		}
		r.data[t.ID] = t
	}
	return r
}

func (r *MemoryRepo) List(ctx context.Context) ([]Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Template, 0, len(r.data))
	for _, t := range r.data {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Subcategory < out[j].Subcategory
	})
	return out, nil
}

func (r *MemoryRepo) GetActiveByCategory(ctx context.Context, category string) (Template, error) {
	all, err := r.List(ctx)
	if err != nil {
		return Template{}, err
	}
	for _, t := range all {
		if t.Category == category && t.Active {
			return t, nil
		}
	}
	return Template{}, ErrNotFound
}

func (r *MemoryRepo) MarkUsed(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}
	t.UsageCount++
	t.LastUsed = &at
	r.data[id] = t
	return nil
}

func (r *MemoryRepo) UpdateEffectiveness(ctx context.Context, id string, rating float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}
	t.EffectivenessScore = nextEffectiveness(t.EffectivenessScore, rating)
	t.UpdatedAt = time.Now().UTC()
	r.data[id] = t
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
