package analyses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"legaldoc-backend/internal/documents"
	"legaldoc-backend/internal/llm"
	"legaldoc-backend/internal/templates"
)

const docID = "0d5c1a8e-4b7f-4f3a-9c2e-6a1b7d8e9f10"

const rentReply = `{"summary":"...","risk_assessment":[{"risk":"late_fee","severity":"low"}]}`

type stubLLM struct {
	mu      sync.Mutex
	calls   int
	replies []string
	errs    []error
	block   bool
	onCall  func()
	lastReq llm.Request
}

func (s *stubLLM) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	s.lastReq = req
	onCall := s.onCall
	s.mu.Unlock()

	if onCall != nil {
		onCall()
	}
	if s.block {
		<-ctx.Done()
		return llm.Response{}, ctx.Err()
	}
	if i < len(s.errs) && s.errs[i] != nil {
		return llm.Response{}, s.errs[i]
	}
	reply := rentReply
	if len(s.replies) > 0 {
		reply = s.replies[min(i, len(s.replies)-1)]
	}
	return llm.Response{Text: reply, Model: "stub-model", PromptTokens: 10, CompletionTokens: 5}, nil
}

func (s *stubLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeDocs map[string]documents.Document

func (f fakeDocs) Get(ctx context.Context, userID, documentID string) (documents.Document, error) {
	doc, ok := f[documentID]
	if !ok || doc.UserID != userID {
		return documents.Document{}, documents.ErrNotFound
	}
	return doc, nil
}

type fakeTemplates struct {
	mu      sync.Mutex
	ratings map[string][]int
}

func (f *fakeTemplates) Resolve(ctx context.Context, category string) templates.Template {
	if category == "" || category == templates.GeneralCategory {
		return templates.Fallback(category)
	}
	return templates.Template{ID: "tpl-" + category, Category: category, Name: "Residential Lease"}
}

func (f *fakeTemplates) RecordRating(ctx context.Context, templateID string, rating int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ratings == nil {
		f.ratings = map[string][]int{}
	}
	f.ratings[templateID] = append(f.ratings[templateID], rating)
	return nil
}

type countingUsage struct {
	mu    sync.Mutex
	calls map[string]int
}

func (u *countingUsage) IncrementAPICalls(ctx context.Context, userID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.calls == nil {
		u.calls = map[string]int{}
	}
	u.calls[userID]++
	return nil
}

func (u *countingUsage) count(userID string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls[userID]
}

type serviceFixture struct {
	svc       *Service
	repo      *MemoryRepo
	llm       *stubLLM
	templates *fakeTemplates
	usage     *countingUsage
}

func newServiceFixture(t *testing.T, model *stubLLM) serviceFixture {
	t.Helper()
	docs := fakeDocs{
		docID: {
			ID:            docID,
			UserID:        "user-1",
			Status:        documents.StatusCompleted,
			DocumentType:  "rental_agreement",
			ExtractedText: "Rent is due on the 1st of each month",
		},
		"doc-pending": {
			ID:     "doc-pending",
			UserID: "user-1",
			Status: documents.StatusProcessing,
		},
		"doc-other": {
			ID:            "doc-other",
			UserID:        "user-2",
			Status:        documents.StatusCompleted,
			ExtractedText: "Someone else's contract",
		},
	}
	fx := serviceFixture{
		repo:      NewMemoryRepo(),
		llm:       model,
		templates: &fakeTemplates{},
		usage:     &countingUsage{},
	}
	fx.svc = &Service{
		Repo:       fx.repo,
		Documents:  docs,
		Templates:  fx.templates,
		LLM:        model,
		Usage:      fx.usage,
		Model:      "configured-model",
		Timeout:    time.Second,
		RetryDelay: time.Millisecond,
	}
	return fx
}

func countRows(t *testing.T, repo *MemoryRepo, userID string) int {
	t.Helper()
	n, err := repo.CountByUser(context.Background(), userID)
	require.NoError(t, err)
	return n
}

func TestAnalyzeRiskAssessmentCompletes(t *testing.T) {
	fx := newServiceFixture(t, &stubLLM{})

	a, created, err := fx.svc.Analyze(context.Background(), "user-1", docID, AnalyzeRequest{
		AnalysisType: TypeRiskAssessment,
		FocusAreas:   []string{" late fees ", ""},
	})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, StatusCompleted, a.Status)
	require.Len(t, a.Result.RiskAssessment, 1)
	require.Equal(t, SeverityLow, a.Result.RiskAssessment[0].Severity)
	require.Equal(t, "tpl-rental_agreement", a.TemplateID)
	require.Equal(t, "stub-model", a.ModelUsed)
	require.Equal(t, []string{"late fees"}, a.FocusAreas)
	require.NotNil(t, a.CompletedAt)

	stored, err := fx.repo.GetByID(context.Background(), "user-1", a.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, stored.Status)
	require.Equal(t, docID, stored.DocumentID)
	require.Equal(t, 1, countRows(t, fx.repo, "user-1"))
	require.Equal(t, 1, fx.usage.count("user-1"))

	require.Contains(t, fx.llm.lastReq.Prompt, "Rent is due on the 1st of each month")
	require.Contains(t, fx.llm.lastReq.Prompt, "Residential Lease")
	require.Contains(t, fx.llm.lastReq.Prompt, "late fees")
}

func TestAnalyzeMalformedReplyPersistsFailedRow(t *testing.T) {
	fx := newServiceFixture(t, &stubLLM{replies: []string{"Sorry, I can't produce JSON today."}})

	a, created, err := fx.svc.Analyze(context.Background(), "user-1", docID, AnalyzeRequest{AnalysisType: TypeFullSummary})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, StatusFailed, a.Status)
	require.Equal(t, ErrorCodeLLMSchemaMismatch, a.ErrorCode)
	require.NotEmpty(t, a.ErrorMessage)
	require.Equal(t, 1, countRows(t, fx.repo, "user-1"))
}

func TestAnalyzeTimeoutPersistsFailedRow(t *testing.T) {
	fx := newServiceFixture(t, &stubLLM{block: true})
	fx.svc.Timeout = 20 * time.Millisecond

	a, created, err := fx.svc.Analyze(context.Background(), "user-1", docID, AnalyzeRequest{AnalysisType: TypeGeneral})
	require.ErrorIs(t, err, llm.ErrTimeout)
	require.True(t, created)
	require.Equal(t, StatusFailed, a.Status)
	require.Equal(t, ErrorCodeLLMTimeout, a.ErrorCode)
	require.Equal(t, 1, countRows(t, fx.repo, "user-1"))
	require.Equal(t, 1, fx.llm.callCount())
}

func TestAnalyzeUnavailablePersistsFailedRow(t *testing.T) {
	fx := newServiceFixture(t, &stubLLM{errs: []error{llm.ErrUnavailable}})

	a, _, err := fx.svc.Analyze(context.Background(), "user-1", docID, AnalyzeRequest{AnalysisType: TypeGeneral})
	require.ErrorIs(t, err, llm.ErrUnavailable)
	require.Equal(t, StatusFailed, a.Status)
	require.Equal(t, ErrorCodeLLMUnavailable, a.ErrorCode)
	require.Equal(t, 1, fx.llm.callCount())
	require.Equal(t, 1, countRows(t, fx.repo, "user-1"))
}

func TestAnalyzeNotConfiguredIsUnavailable(t *testing.T) {
	fx := newServiceFixture(t, &stubLLM{})
	fx.svc.LLM = llm.PlaceholderClient{}

	a, _, err := fx.svc.Analyze(context.Background(), "user-1", docID, AnalyzeRequest{AnalysisType: TypeGeneral})
	require.ErrorIs(t, err, llm.ErrUnavailable)
	require.Equal(t, ErrorCodeLLMUnavailable, a.ErrorCode)
}

func TestAnalyzeRetriesTransientFailureOnce(t *testing.T) {
	fx := newServiceFixture(t, &stubLLM{errs: []error{fmt.Errorf("%w: openai http status 503: busy", llm.ErrUnavailable)}})

	a, _, err := fx.svc.Analyze(context.Background(), "user-1", docID, AnalyzeRequest{AnalysisType: TypeRiskAssessment})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, a.Status)
	require.Equal(t, 2, fx.llm.callCount())
}

func TestAnalyzeCancelledCallerWritesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fx := newServiceFixture(t, &stubLLM{onCall: cancel})

	_, created, err := fx.svc.Analyze(ctx, "user-1", docID, AnalyzeRequest{AnalysisType: TypeGeneral})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, created)
	require.Equal(t, 0, countRows(t, fx.repo, "user-1"))
	require.Equal(t, 0, fx.usage.count("user-1"))
}

func TestAnalyzeOwnershipAndReadiness(t *testing.T) {
	fx := newServiceFixture(t, &stubLLM{})
	ctx := context.Background()

	_, _, err := fx.svc.Analyze(ctx, "user-1", "doc-other", AnalyzeRequest{AnalysisType: TypeGeneral})
	require.ErrorIs(t, err, documents.ErrNotFound)

	_, _, err = fx.svc.Analyze(ctx, "user-1", "missing", AnalyzeRequest{AnalysisType: TypeGeneral})
	require.ErrorIs(t, err, documents.ErrNotFound)

	_, _, err = fx.svc.Analyze(ctx, "user-1", "doc-pending", AnalyzeRequest{AnalysisType: TypeGeneral})
	require.ErrorIs(t, err, ErrDocumentNotReady)

	_, _, err = fx.svc.Analyze(ctx, "user-1", docID, AnalyzeRequest{AnalysisType: "poetry"})
	require.ErrorIs(t, err, ErrInvalidInput)

	require.Equal(t, 0, fx.llm.callCount())
	require.Equal(t, 0, countRows(t, fx.repo, "user-1"))
}

func TestAnalyzeReplayedRequestIDReturnsStoredAnalysis(t *testing.T) {
	fx := newServiceFixture(t, &stubLLM{})
	ctx := context.Background()
	req := AnalyzeRequest{AnalysisType: TypeRiskAssessment, RequestID: "req-42"}

	first, created, err := fx.svc.Analyze(ctx, "user-1", docID, req)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := fx.svc.Analyze(ctx, "user-1", docID, req)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, fx.llm.callCount())
	require.Equal(t, 1, countRows(t, fx.repo, "user-1"))
}

func TestRequestIDReusedForAnotherTargetConflicts(t *testing.T) {
	fx := newServiceFixture(t, &stubLLM{})
	ctx := context.Background()

	_, created, err := fx.svc.Analyze(ctx, "user-1", docID, AnalyzeRequest{AnalysisType: TypeRiskAssessment, RequestID: "req-7"})
	require.NoError(t, err)
	require.True(t, created)

	_, _, err = fx.svc.Analyze(ctx, "user-1", docID, AnalyzeRequest{AnalysisType: TypeFullSummary, RequestID: "req-7"})
	require.ErrorIs(t, err, ErrRequestIDReused)
	_, _, err = fx.svc.Ask(ctx, "user-1", docID, QuestionRequest{Question: "When is rent due?", RequestID: "req-7"})
	require.ErrorIs(t, err, ErrRequestIDReused)
	_, _, err = fx.svc.Analyze(ctx, "user-1", "doc-other", AnalyzeRequest{AnalysisType: TypeRiskAssessment, RequestID: "req-7"})
	require.ErrorIs(t, err, ErrRequestIDReused)

	// The canonical form of the same document id still replays.
	_, created, err = fx.svc.Analyze(ctx, "user-1", strings.ToUpper(docID), AnalyzeRequest{AnalysisType: TypeRiskAssessment, RequestID: "req-7"})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, 1, fx.llm.callCount())
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	fx := newServiceFixture(t, &stubLLM{})
	ctx := context.Background()

	_, err := fx.svc.Get(ctx, "user-1", "not-a-uuid")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = fx.svc.Feedback(ctx, "user-1", "not-a-uuid", 3, "")
	require.ErrorIs(t, err, ErrNotFound)
	_, _, err = fx.svc.List(ctx, "user-1", ListFilter{DocumentID: "not-a-uuid"})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAnalyzeConcurrentCallsProduceIndependentRows(t *testing.T) {
	fx := newServiceFixture(t, &stubLLM{})
	const n = 8

	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, _, err := fx.svc.Analyze(context.Background(), "user-1", docID, AnalyzeRequest{AnalysisType: TypeRiskAssessment})
			if err == nil {
				ids <- a.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	require.Len(t, seen, n)
	require.Equal(t, n, countRows(t, fx.repo, "user-1"))
}

func TestAskStoresQuestionAndAnswer(t *testing.T) {
	fx := newServiceFixture(t, &stubLLM{replies: []string{`{"answer":"On the 1st of each month.","confidence_score":0.9}`}})

	a, created, err := fx.svc.Ask(context.Background(), "user-1", docID, QuestionRequest{Question: " When is rent due? "})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, TypeQA, a.AnalysisType)
	require.Equal(t, "When is rent due?", a.Question)
	require.Equal(t, "On the 1st of each month.", a.Answer)
	require.Equal(t, 0.9, a.ConfidenceScore)

	_, _, err = fx.svc.Ask(context.Background(), "user-1", docID, QuestionRequest{Question: "  "})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, _, err = fx.svc.Ask(context.Background(), "user-1", docID, QuestionRequest{Question: strings.Repeat("q", maxQuestionLength+1)})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestFeedback(t *testing.T) {
	fx := newServiceFixture(t, &stubLLM{})
	ctx := context.Background()
	a, _, err := fx.svc.Analyze(ctx, "user-1", docID, AnalyzeRequest{AnalysisType: TypeRiskAssessment})
	require.NoError(t, err)

	_, err = fx.svc.Feedback(ctx, "user-1", a.ID, 6, "")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = fx.svc.Feedback(ctx, "user-2", a.ID, 1, "not mine")
	require.ErrorIs(t, err, ErrNotFound)
	unchanged, err := fx.repo.GetByID(ctx, "user-1", a.ID)
	require.NoError(t, err)
	require.Nil(t, unchanged.UserRating)
	require.Empty(t, unchanged.UserFeedback)

	updated, err := fx.svc.Feedback(ctx, "user-1", a.ID, 4, " helpful ")
	require.NoError(t, err)
	require.NotNil(t, updated.UserRating)
	require.Equal(t, 4, *updated.UserRating)
	require.Equal(t, "helpful", updated.UserFeedback)
	require.Equal(t, StatusCompleted, updated.Status)
	require.Equal(t, []int{4}, fx.templates.ratings["tpl-rental_agreement"])
}

func TestListFiltersAndPaginates(t *testing.T) {
	fx := newServiceFixture(t, &stubLLM{replies: []string{`{"summary":"s","risk_assessment":[],"answer":"a","clauses_analyzed":[]}`}})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	fx.svc.Now = func() time.Time {
		tick++
		return now.Add(time.Duration(tick) * time.Minute)
	}
	ctx := context.Background()

	for _, typ := range []string{TypeGeneral, TypeRiskAssessment, TypeGeneral} {
		_, _, err := fx.svc.Analyze(ctx, "user-1", docID, AnalyzeRequest{AnalysisType: typ})
		require.NoError(t, err)
	}

	items, total, err := fx.svc.List(ctx, "user-1", ListFilter{AnalysisType: TypeGeneral})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, items, 2)
	require.True(t, items[0].CreatedAt.After(items[1].CreatedAt))

	items, total, err = fx.svc.List(ctx, "user-1", ListFilter{Skip: 1, Limit: 1, DocumentID: docID})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, items, 1)

	items, total, err = fx.svc.List(ctx, "user-2", ListFilter{})
	require.NoError(t, err)
	require.Equal(t, 0, total)
	require.Empty(t, items)

	_, _, err = fx.svc.List(ctx, "user-1", ListFilter{AnalysisType: "bogus"})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestClassifyFailure(t *testing.T) {
	require.Equal(t, ErrorCodeLLMTimeout, classifyFailure(errors.Join(llm.ErrTimeout, context.DeadlineExceeded)))
	require.Equal(t, ErrorCodeLLMUnavailable, classifyFailure(fmt.Errorf("x: %w", llm.ErrUnavailable)))
	require.Equal(t, ErrorCodeLLMSchemaMismatch, classifyFailure(ErrMalformedResponse))
	require.Equal(t, ErrorCodeInternal, classifyFailure(errors.New("boom")))
	require.Len(t, sanitizeError(errors.New(strings.Repeat("x", 900))), 500)
	require.Equal(t, "a b", sanitizeError(errors.New("a\nb")))
}
