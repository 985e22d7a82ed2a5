package analyses

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores analyses in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Analysis
	// userID -> requestID -> analysisID
	byRequest map[string]map[string]string
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:      make(map[string]Analysis),
		byRequest: make(map[string]map[string]string),
	}
}

// Create stores the analysis.
func (r *MemoryRepo) Create(ctx context.Context, analysis Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if analysis.RequestID != "" {
		reqs := r.byRequest[analysis.UserID]
		if reqs == nil {
			reqs = make(map[string]string)
			r.byRequest[analysis.UserID] = reqs
		}
		if _, exists := reqs[analysis.RequestID]; exists {
			return ErrDuplicateRequest
		}
		reqs[analysis.RequestID] = analysis.ID
	}
	r.byID[analysis.ID] = cloneAnalysis(analysis)
	return nil
}

// GetByID returns an analysis owned by userID.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, analysisID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	analysis, ok := r.byID[analysisID]
	if !ok || analysis.UserID != userID {
		return Analysis{}, ErrNotFound
	}
	return cloneAnalysis(analysis), nil
}

func (r *MemoryRepo) GetByRequestID(ctx context.Context, userID, requestID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byRequest[userID][requestID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	analysis, ok := r.byID[id]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return cloneAnalysis(analysis), nil
}

// List returns the user's analyses newest first, honoring the filter.
func (r *MemoryRepo) List(ctx context.Context, userID string, filter ListFilter) ([]Analysis, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	filter = filter.normalized()

	r.mu.RLock()
	var matched []Analysis
	for _, a := range r.byID {
		if a.UserID != userID {
			continue
		}
		if filter.DocumentID != "" && a.DocumentID != filter.DocumentID {
			continue
		}
		if filter.AnalysisType != "" && a.AnalysisType != filter.AnalysisType {
			continue
		}
		matched = append(matched, cloneAnalysis(a))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Skip >= total {
		return []Analysis{}, total, nil
	}
	end := filter.Skip + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Skip:end], total, nil
}

func (r *MemoryRepo) UpdateFeedback(ctx context.Context, userID, analysisID string, rating int, feedback string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[analysisID]
	if !ok || analysis.UserID != userID {
		return ErrNotFound
	}
	analysis.UserRating = &rating
	analysis.UserFeedback = feedback
	analysis.UpdatedAt = at
	r.byID[analysisID] = analysis
	return nil
}

func (r *MemoryRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteWhere(func(a Analysis) bool { return a.DocumentID == documentID })
	return nil
}

func (r *MemoryRepo) DeleteByUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteWhere(func(a Analysis) bool { return a.UserID == userID })
	delete(r.byRequest, userID)
	return nil
}

func (r *MemoryRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, a := range r.byID {
		if a.UserID == userID {
			n++
		}
	}
	return n, nil
}

// deleteWhere must be called with the write lock held.
func (r *MemoryRepo) deleteWhere(match func(Analysis) bool) {
	for id, a := range r.byID {
		if !match(a) {
			continue
		}
		delete(r.byID, id)
		if a.RequestID != "" {
			delete(r.byRequest[a.UserID], a.RequestID)
		}
	}
}

func cloneAnalysis(a Analysis) Analysis {
	if a.FocusAreas != nil {
		a.FocusAreas = append([]string(nil), a.FocusAreas...)
	}
	if a.UserRating != nil {
		rating := *a.UserRating
		a.UserRating = &rating
	}
	return a
}
