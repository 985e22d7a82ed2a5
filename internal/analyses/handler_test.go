package analyses

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"legaldoc-backend/internal/llm"
	"legaldoc-backend/internal/shared/server/respond"
)

func newTestRouter(t *testing.T, model *stubLLM) (*gin.Engine, serviceFixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fx := newServiceFixture(t, model)

	r := gin.New()
	// Stand-in for the auth middleware.
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User"); id != "" {
			c.Set("userId", id)
		}
		c.Next()
	})
	NewHandler(fx.svc).RegisterRoutes(r.Group("/"))
	return r, fx
}

func doJSON(t *testing.T, r *gin.Engine, method, path, user string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", user)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) respond.ErrorResponse {
	t.Helper()
	var body respond.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandlerAnalyzeCreatesCompletedAnalysis(t *testing.T) {
	r, _ := newTestRouter(t, &stubLLM{})

	rec := doJSON(t, r, http.MethodPost, "/analysis/analyze/"+docID, "user-1", gin.H{"analysis_type": "risk_assessment"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, StatusCompleted, got.Status)
	require.Equal(t, docID, got.DocumentID)
	require.Len(t, got.RiskAssessment, 1)
	require.Equal(t, "low", got.RiskAssessment[0].Severity)

	rec = doJSON(t, r, http.MethodGet, "/analysis/"+got.ID, "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/analysis/"+got.ID, "user-2", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerAnalyzeErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		model    *stubLLM
		document string
		body     gin.H
		status   int
		code     string
	}{
		{name: "foreign document", model: &stubLLM{}, document: "doc-other", body: gin.H{"analysis_type": "general"}, status: http.StatusNotFound, code: respond.CodeNotFound},
		{name: "unknown type", model: &stubLLM{}, document: docID, body: gin.H{"analysis_type": "haiku"}, status: http.StatusBadRequest, code: respond.CodeValidation},
		{name: "not processed", model: &stubLLM{}, document: "doc-pending", body: gin.H{"analysis_type": "general"}, status: http.StatusBadRequest, code: respond.CodeValidation},
		{name: "timeout", model: &stubLLM{block: true}, document: docID, body: gin.H{"analysis_type": "general"}, status: http.StatusGatewayTimeout, code: respond.CodeAITimeout},
		{name: "unreachable", model: &stubLLM{errs: []error{llm.ErrUnavailable}}, document: docID, body: gin.H{"analysis_type": "general"}, status: http.StatusBadGateway, code: respond.CodeAIUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, fx := newTestRouter(t, tt.model)
			fx.svc.Timeout = 20 * time.Millisecond

			rec := doJSON(t, r, http.MethodPost, "/analysis/analyze/"+tt.document, "user-1", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			require.Equal(t, tt.code, decodeError(t, rec).Error.Code)
		})
	}
}

func TestHandlerMalformedReplyReturnsFailedRecord(t *testing.T) {
	r, _ := newTestRouter(t, &stubLLM{replies: []string{"not json"}})

	rec := doJSON(t, r, http.MethodPost, "/analysis/analyze/"+docID, "user-1", gin.H{"analysis_type": "full_summary"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var got AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, StatusFailed, got.Status)
	require.Equal(t, ErrorCodeLLMSchemaMismatch, got.ErrorCode)
}

func TestHandlerReplayReturns200(t *testing.T) {
	model := &stubLLM{}
	r, _ := newTestRouter(t, model)
	body := gin.H{"analysis_type": "risk_assessment"}

	first := doJSON(t, r, http.MethodPost, "/analysis/analyze/"+docID, "user-1", body, "X-Request-Id", "retry-1")
	require.Equal(t, http.StatusCreated, first.Code)
	second := doJSON(t, r, http.MethodPost, "/analysis/analyze/"+docID, "user-1", body, "X-Request-Id", "retry-1")
	require.Equal(t, http.StatusOK, second.Code)

	var a, b AnalysisResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	require.Equal(t, a.ID, b.ID)
	require.Equal(t, 1, model.callCount())
}

func TestHandlerRequestIDReuseConflicts(t *testing.T) {
	r, _ := newTestRouter(t, &stubLLM{})

	rec := doJSON(t, r, http.MethodPost, "/analysis/analyze/"+docID, "user-1", gin.H{"analysis_type": "risk_assessment"}, "X-Request-Id", "retry-2")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/analysis/question/"+docID, "user-1", gin.H{"question": "When is rent due?"}, "X-Request-Id", "retry-2")
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	require.Equal(t, respond.CodeConflict, decodeError(t, rec).Error.Code)
}

func TestHandlerMalformedIDsAreNotFound(t *testing.T) {
	r, _ := newTestRouter(t, &stubLLM{})

	rec := doJSON(t, r, http.MethodGet, "/analysis/foo", "user-1", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, respond.CodeNotFound, decodeError(t, rec).Error.Code)

	rec = doJSON(t, r, http.MethodPost, "/analysis/foo/feedback", "user-1", gin.H{"rating": 4})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/analysis/?document_id=foo", "user-1", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerQuestion(t *testing.T) {
	r, _ := newTestRouter(t, &stubLLM{replies: []string{`{"answer":"The 1st."}`}})

	rec := doJSON(t, r, http.MethodPost, "/analysis/question/"+docID, "user-1", gin.H{"question": "When is rent due?"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var got QuestionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "The 1st.", got.Answer)
	require.NotEmpty(t, got.AnalysisID)

	rec = doJSON(t, r, http.MethodPost, "/analysis/question/"+docID, "user-1", gin.H{"question": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerListAndFeedback(t *testing.T) {
	r, _ := newTestRouter(t, &stubLLM{})

	rec := doJSON(t, r, http.MethodPost, "/analysis/analyze/"+docID, "user-1", gin.H{"analysis_type": "risk_assessment"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, r, http.MethodGet, "/analysis/?document_id="+docID+"&limit=10", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page respond.Page[AnalysisResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 1, page.Total)
	require.Equal(t, 10, page.Limit)
	require.Len(t, page.Items, 1)

	rec = doJSON(t, r, http.MethodGet, "/analysis/?limit=0", "user-1", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/analysis/"+created.ID+"/feedback", "user-2", gin.H{"rating": 1})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/analysis/"+created.ID+"/feedback", "user-1", gin.H{"rating": 9})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/analysis/"+created.ID+"/feedback?rating=5&feedback=clear", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, r, http.MethodGet, "/analysis/"+created.ID, "user-1", nil)
	var got AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.UserRating)
	require.Equal(t, 5, *got.UserRating)
	require.Equal(t, "clear", got.UserFeedback)
}
