package documents

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"legaldoc-backend/internal/shared/storage/object/local"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := &Service{
		Store:       local.New(t.TempDir()),
		Repo:        NewMemoryRepo(),
		MaxFileSize: 1 << 10,
	}
	r := gin.New()
	// Stand-in for the auth middleware.
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User"); id != "" {
			c.Set("userId", id)
		}
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(r.Group("/"))
	return r
}

func multipartUpload(t *testing.T, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fw, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func doUpload(t *testing.T, r *gin.Engine, user, fileName string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartUpload(t, fileName, content)
	req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Test-User", user)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerUploadGetAndList(t *testing.T) {
	r := newTestRouter(t)

	rec := doUpload(t, r, "user-1", "rent.txt", []byte(rentText))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created DocumentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.DocumentID)
	require.Equal(t, StatusCompleted, created.Status)
	require.Equal(t, 9, created.WordCount)
	require.Equal(t, 1, created.PageCount)

	req := httptest.NewRequest(http.MethodGet, "/documents/"+created.DocumentID, nil)
	req.Header.Set("X-Test-User", "user-1")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail DocumentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	require.Equal(t, rentText, detail.ExtractedText)

	req = httptest.NewRequest(http.MethodGet, "/documents/?skip=0&limit=10", nil)
	req.Header.Set("X-Test-User", "user-1")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []DocumentResponse `json:"items"`
		Total int                `json:"total"`
		Skip  int                `json:"skip"`
		Limit int                `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 1, page.Total)
	require.Equal(t, 10, page.Limit)
	require.Len(t, page.Items, 1)
	require.Empty(t, page.Items[0].ExtractedText)
}

func TestHandlerUploadErrors(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name     string
		fileName string
		content  []byte
		status   int
		code     string
	}{
		{"unsupported extension", "notes.exe", []byte("hello"), http.StatusBadRequest, "validation_error"},
		{"too large", "big.txt", bytes.Repeat([]byte("a"), 4<<10), http.StatusBadRequest, "validation_error"},
		{"corrupt pdf", "broken.pdf", []byte("not a pdf"), http.StatusUnprocessableEntity, "corrupt_file"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doUpload(t, r, "user-1", tc.fileName, tc.content)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tc.code, body.Error.Code)
		})
	}
}

func TestHandlerForeignDocumentIsNotFound(t *testing.T) {
	r := newTestRouter(t)

	rec := doUpload(t, r, "user-1", "rent.txt", []byte(rentText))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created DocumentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		req := httptest.NewRequest(method, "/documents/"+created.DocumentID, nil)
		req.Header.Set("X-Test-User", "user-2")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code, method)
	}

	req := httptest.NewRequest(http.MethodGet, "/documents/"+created.DocumentID+"/download", nil)
	req.Header.Set("X-Test-User", "user-1")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, rentText, rec.Body.String())
	require.Contains(t, rec.Header().Get("Content-Disposition"), "rent.txt")

	req = httptest.NewRequest(http.MethodDelete, "/documents/"+created.DocumentID, nil)
	req.Header.Set("X-Test-User", "user-1")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"message":"Document deleted successfully"}`, rec.Body.String())
}

func TestHandlerMalformedIDIsNotFound(t *testing.T) {
	r := newTestRouter(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/documents/not-a-uuid"},
		{http.MethodGet, "/documents/not-a-uuid/download"},
		{http.MethodDelete, "/documents/not-a-uuid"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set("X-Test-User", "user-1")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code, tc.method+" "+tc.path)
	}
}
