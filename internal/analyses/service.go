package analyses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"legaldoc-backend/internal/documents"
	"legaldoc-backend/internal/llm"
	"legaldoc-backend/internal/shared/metrics"
	"legaldoc-backend/internal/shared/telemetry"
	"legaldoc-backend/internal/templates"
)

const (
	defaultAITimeout  = 120 * time.Second
	maxQuestionLength = 2000
	maxFeedbackLength = 2000
	maxFocusAreas     = 10
)

// DocumentReader loads owner-scoped documents.
type DocumentReader interface {
	Get(ctx context.Context, userID, documentID string) (documents.Document, error)
}

// TemplateResolver picks analysis guidance for a document category.
type TemplateResolver interface {
	Resolve(ctx context.Context, category string) templates.Template
	RecordRating(ctx context.Context, templateID string, rating int) error
}

// CallRecorder counts model calls per user.
type CallRecorder interface {
	IncrementAPICalls(ctx context.Context, userID string) error
}

// Service orchestrates model calls and persists their outcome.
type Service struct {
	Repo       Repo
	Documents  DocumentReader
	Templates  TemplateResolver
	LLM        llm.Client
	Usage      CallRecorder
	Model      string
	Timeout    time.Duration
	RetryDelay time.Duration
	Now        func() time.Time
}

// AnalyzeRequest describes a requested analysis.
type AnalyzeRequest struct {
	AnalysisType string
	Language     string
	FocusAreas   []string
	// RequestID makes the write idempotent per user when set.
	RequestID string
}

// QuestionRequest describes a question asked against a document.
type QuestionRequest struct {
	Question  string
	Language  string
	RequestID string
}

// Analyze runs one analysis and persists it. The bool reports whether a new row was written;
// it is false when RequestID matched a stored analysis, which is then returned unchanged.
// Model timeouts and transport failures persist a failed row and return an error wrapping
// llm.ErrTimeout or llm.ErrUnavailable. A malformed reply persists a failed row with a nil error.
func (s *Service) Analyze(ctx context.Context, userID, documentID string, req AnalyzeRequest) (Analysis, bool, error) {
	req.AnalysisType = strings.TrimSpace(req.AnalysisType)
	if !ValidAnalyzeType(req.AnalysisType) {
		return Analysis{}, false, fmt.Errorf("%w: analysis_type must be one of full_summary, risk_assessment, clause_explanation, general", ErrInvalidInput)
	}
	focus, err := normalizeFocusAreas(req.FocusAreas)
	if err != nil {
		return Analysis{}, false, err
	}
	if existing, ok, err := s.replay(ctx, userID, req.RequestID, documentID, req.AnalysisType); err != nil || ok {
		return existing, false, err
	}

	doc, err := s.loadDocument(ctx, userID, documentID)
	if err != nil {
		return Analysis{}, false, err
	}
	tmpl := s.resolveTemplate(ctx, doc.DocumentType)

	prompt, err := llm.BuildAnalysisRequest(llm.PromptInput{
		AnalysisType: req.AnalysisType,
		DocumentType: doc.DocumentType,
		Language:     normalizeLanguage(req.Language),
		FocusAreas:   focus,
		DocumentText: doc.ExtractedText,
		Guidance:     guidanceFor(tmpl),
	})
	if err != nil {
		return Analysis{}, false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	analysis := s.newAnalysis(userID, doc.ID, tmpl.ID, req.RequestID, req.AnalysisType, normalizeLanguage(req.Language))
	analysis.FocusAreas = focus
	return s.run(ctx, analysis, prompt)
}

// Ask answers a question about a document and stores it as a qa analysis.
func (s *Service) Ask(ctx context.Context, userID, documentID string, req QuestionRequest) (Analysis, bool, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Analysis{}, false, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	if len(question) > maxQuestionLength {
		return Analysis{}, false, fmt.Errorf("%w: question exceeds %d characters", ErrInvalidInput, maxQuestionLength)
	}
	if existing, ok, err := s.replay(ctx, userID, req.RequestID, documentID, TypeQA); err != nil || ok {
		return existing, false, err
	}

	doc, err := s.loadDocument(ctx, userID, documentID)
	if err != nil {
		return Analysis{}, false, err
	}
	tmpl := s.resolveTemplate(ctx, doc.DocumentType)
	prompt := llm.BuildQuestionRequest(llm.PromptInput{
		DocumentType: doc.DocumentType,
		Language:     normalizeLanguage(req.Language),
		DocumentText: doc.ExtractedText,
		Question:     question,
	})

	analysis := s.newAnalysis(userID, doc.ID, tmpl.ID, req.RequestID, TypeQA, normalizeLanguage(req.Language))
	analysis.Question = question
	return s.run(ctx, analysis, prompt)
}

func (s *Service) run(ctx context.Context, analysis Analysis, prompt llm.Request) (Analysis, bool, error) {
	if s.LLM == nil {
		return Analysis{}, false, errors.New("missing llm client")
	}
	metrics.IncAnalysisStarted()
	logStatus(ctx, analysis, StatusPending)

	started := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, s.timeout())
	resp, callErr := newRetryingLLM(s.LLM, s.RetryDelay, analysis.DocumentID, requestIDFromContext(ctx)).Generate(callCtx, prompt)
	cancel()
	elapsed := time.Since(started)

	// The caller went away: abandon the result without touching the store.
	if err := ctx.Err(); err != nil {
		telemetry.Warn("analysis.abandoned", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"document_id": analysis.DocumentID,
			"error":       err.Error(),
		})
		return Analysis{}, false, err
	}

	if s.Usage != nil {
		if err := s.Usage.IncrementAPICalls(ctx, analysis.UserID); err != nil {
			telemetry.Warn("analysis.usage_failed", map[string]any{"user_id": analysis.UserID, "error": err})
		}
	}

	analysis.ProcessingTimeMs = int(elapsed.Milliseconds())
	analysis.ModelUsed = s.Model
	var returnErr error
	if callErr != nil {
		callErr = normalizeModelError(callErr)
		code := classifyFailure(callErr)
		s.markFailed(&analysis, code, callErr)
		returnErr = callErr
	} else {
		if resp.Model != "" {
			analysis.ModelUsed = resp.Model
		}
		analysis.PromptTokens = resp.PromptTokens
		analysis.CompletionTokens = resp.CompletionTokens
		parsed, err := parseReply(analysis.AnalysisType, resp.Text)
		if err != nil {
			s.markFailed(&analysis, ErrorCodeLLMSchemaMismatch, err)
		} else {
			now := s.now()
			analysis.Status = StatusCompleted
			analysis.Summary = parsed.Summary
			analysis.Answer = parsed.Answer
			analysis.Result = parsed.Result
			analysis.ConfidenceScore = parsed.ConfidenceScore
			analysis.CompletedAt = &now
		}
	}

	stored, created, err := s.persist(ctx, analysis)
	if err != nil {
		metrics.IncAnalysisFailed(ErrorCodeStorage)
		return Analysis{}, false, fmt.Errorf("store analysis: %w", err)
	}
	if !created {
		return stored, false, nil
	}

	metrics.ObserveAnalysisDurationMs(float64(elapsed.Milliseconds()))
	if stored.Status == StatusCompleted {
		metrics.IncAnalysisCompleted()
	} else {
		metrics.IncAnalysisFailed(stored.ErrorCode)
	}
	logStatus(ctx, stored, stored.Status)
	return stored, true, returnErr
}

// persist writes the analysis, resolving a concurrent replay of the same request id to the stored row.
func (s *Service) persist(ctx context.Context, analysis Analysis) (Analysis, bool, error) {
	err := s.Repo.Create(ctx, analysis)
	if err == nil {
		return analysis, true, nil
	}
	if errors.Is(err, ErrDuplicateRequest) && analysis.RequestID != "" {
		existing, getErr := s.Repo.GetByRequestID(ctx, analysis.UserID, analysis.RequestID)
		if getErr == nil {
			if !sameTarget(existing, analysis.DocumentID, analysis.AnalysisType) {
				return Analysis{}, false, ErrRequestIDReused
			}
			return existing, false, nil
		}
	}
	return Analysis{}, false, err
}

// replay returns the analysis stored under requestID. Reusing the id for another
// document or analysis type is ErrRequestIDReused.
func (s *Service) replay(ctx context.Context, userID, requestID, documentID, analysisType string) (Analysis, bool, error) {
	if strings.TrimSpace(requestID) == "" {
		return Analysis{}, false, nil
	}
	existing, err := s.Repo.GetByRequestID(ctx, userID, requestID)
	if err == nil {
		if !sameTarget(existing, documentID, analysisType) {
			return Analysis{}, false, ErrRequestIDReused
		}
		telemetry.Info("analysis.replayed", map[string]any{
			"user_id":     userID,
			"analysis_id": existing.ID,
			"request_id":  requestID,
		})
		return existing, true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return Analysis{}, false, nil
	}
	return Analysis{}, false, err
}

func (s *Service) loadDocument(ctx context.Context, userID, documentID string) (documents.Document, error) {
	if strings.TrimSpace(documentID) == "" {
		return documents.Document{}, fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}
	doc, err := s.Documents.Get(ctx, userID, documentID)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			return documents.Document{}, fmt.Errorf("document %s: %w", documentID, documents.ErrNotFound)
		}
		return documents.Document{}, err
	}
	if doc.Status != documents.StatusCompleted || !doc.HasText() {
		return documents.Document{}, ErrDocumentNotReady
	}
	return doc, nil
}

func (s *Service) resolveTemplate(ctx context.Context, category string) templates.Template {
	if s.Templates == nil {
		return templates.Fallback(category)
	}
	return s.Templates.Resolve(ctx, category)
}

func (s *Service) newAnalysis(userID, documentID, templateID, requestID, analysisType, language string) Analysis {
	now := s.now()
	return Analysis{
		ID:           uuid.NewString(),
		UserID:       userID,
		DocumentID:   documentID,
		TemplateID:   templateID,
		RequestID:    strings.TrimSpace(requestID),
		AnalysisType: analysisType,
		Language:     language,
		FocusAreas:   []string{},
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *Service) markFailed(a *Analysis, code string, err error) {
	a.Status = StatusFailed
	a.ErrorCode = code
	a.ErrorMessage = sanitizeError(err)
	telemetry.Warn("analysis.failed", map[string]any{
		"analysis_id": a.ID,
		"document_id": a.DocumentID,
		"user_id":     a.UserID,
		"error_code":  code,
		"error":       a.ErrorMessage,
	})
}

// Get returns an owner-scoped analysis.
func (s *Service) Get(ctx context.Context, userID, analysisID string) (Analysis, error) {
	id, ok := parseID(analysisID)
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, userID, id)
}

// List returns a page of the user's analyses, newest first, and the total match count.
func (s *Service) List(ctx context.Context, userID string, filter ListFilter) ([]Analysis, int, error) {
	filter = filter.normalized()
	if filter.AnalysisType != "" && !ValidAnalyzeType(filter.AnalysisType) && filter.AnalysisType != TypeQA {
		return nil, 0, fmt.Errorf("%w: unknown analysis_type %q", ErrInvalidInput, filter.AnalysisType)
	}
	if filter.DocumentID != "" {
		id, ok := parseID(filter.DocumentID)
		if !ok {
			return nil, 0, fmt.Errorf("%w: document_id must be a UUID", ErrInvalidInput)
		}
		filter.DocumentID = id
	}
	return s.Repo.List(ctx, userID, filter)
}

// Feedback attaches a 1..5 rating and optional comment to an owned analysis.
func (s *Service) Feedback(ctx context.Context, userID, analysisID string, rating int, comment string) (Analysis, error) {
	if rating < 1 || rating > 5 {
		return Analysis{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}
	comment = strings.TrimSpace(comment)
	if len(comment) > maxFeedbackLength {
		return Analysis{}, fmt.Errorf("%w: feedback exceeds %d characters", ErrInvalidInput, maxFeedbackLength)
	}
	id, ok := parseID(analysisID)
	if !ok {
		return Analysis{}, ErrNotFound
	}
	if err := s.Repo.UpdateFeedback(ctx, userID, id, rating, comment, s.now()); err != nil {
		return Analysis{}, err
	}
	analysis, err := s.Repo.GetByID(ctx, userID, id)
	if err != nil {
		return Analysis{}, err
	}
	if s.Templates != nil && analysis.TemplateID != "" {
		if err := s.Templates.RecordRating(ctx, analysis.TemplateID, rating); err != nil {
			telemetry.Warn("templates.rating_failed", map[string]any{"template_id": analysis.TemplateID, "error": err})
		}
	}
	return analysis, nil
}

// DeleteByDocument removes every analysis of a document. Used by the document cascade.
func (s *Service) DeleteByDocument(ctx context.Context, documentID string) error {
	return s.Repo.DeleteByDocument(ctx, documentID)
}

// CountByUser returns how many analyses the user owns.
func (s *Service) CountByUser(ctx context.Context, userID string) (int, error) {
	return s.Repo.CountByUser(ctx, userID)
}

func sameTarget(a Analysis, documentID, analysisType string) bool {
	if id, ok := parseID(documentID); ok {
		documentID = id
	}
	return a.DocumentID == strings.TrimSpace(documentID) && a.AnalysisType == analysisType
}

func parseID(raw string) (string, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func (s *Service) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return defaultAITimeout
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// normalizeModelError makes deadline expiry of the model call match llm.ErrTimeout.
func normalizeModelError(err error) error {
	if errors.Is(err, llm.ErrTimeout) || errors.Is(err, llm.ErrUnavailable) {
		return err
	}
	if errors.Is(err, llm.ErrNotConfigured) {
		return errors.Join(llm.ErrUnavailable, err)
	}
	return llm.ClassifyTransportError(err)
}

func classifyFailure(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, llm.ErrTimeout):
		return ErrorCodeLLMTimeout
	case errors.Is(err, llm.ErrUnavailable):
		return ErrorCodeLLMUnavailable
	case errors.Is(err, ErrMalformedResponse):
		return ErrorCodeLLMSchemaMismatch
	case errors.Is(err, ErrInvalidInput):
		return ErrorCodeValidation
	default:
		return ErrorCodeInternal
	}
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}

func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return "en"
	}
	return lang
}

func normalizeFocusAreas(areas []string) ([]string, error) {
	out := make([]string, 0, len(areas))
	for _, a := range areas {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	if len(out) > maxFocusAreas {
		return nil, fmt.Errorf("%w: at most %d focus areas", ErrInvalidInput, maxFocusAreas)
	}
	return out, nil
}

func guidanceFor(t templates.Template) llm.Guidance {
	risks := make([]string, 0, len(t.RiskFactors))
	for _, rf := range t.RiskFactors {
		line := rf.Risk
		if rf.Severity != "" {
			line += " (" + rf.Severity + ")"
		}
		if rf.Description != "" {
			line += ": " + rf.Description
		}
		risks = append(risks, line)
	}
	return llm.Guidance{
		Name:                t.Name,
		CommonClauses:       t.CommonClauses,
		KeyTerms:            t.KeyTerms,
		RiskFactors:         risks,
		RedFlags:            t.RedFlags,
		StandardProtections: t.StandardProtections,
		Glossary:            t.Glossary,
	}
}

func logStatus(ctx context.Context, a Analysis, status string) {
	telemetry.Info("analysis.status", map[string]any{
		"request_id":    requestIDFromContext(ctx),
		"user_id":       a.UserID,
		"document_id":   a.DocumentID,
		"analysis_id":   a.ID,
		"analysis_type": a.AnalysisType,
		"status":        status,
	})
}
