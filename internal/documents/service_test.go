package documents

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"legaldoc-backend/internal/extract"
	"legaldoc-backend/internal/shared/storage/object"
	"legaldoc-backend/internal/shared/storage/object/local"
)

const rentText = "Rent is due on the 1st of each month"

type recordingDependents struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingDependents) DeleteByDocument(_ context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, documentID)
	return nil
}

type countingUsage struct {
	calls map[string]int
}

func (u *countingUsage) IncrementDocumentsProcessed(_ context.Context, userID string) error {
	u.calls[userID]++
	return nil
}

func newTestService(t *testing.T) (*Service, *MemoryRepo, *recordingDependents, *countingUsage) {
	t.Helper()
	repo := NewMemoryRepo()
	deps := &recordingDependents{}
	usage := &countingUsage{calls: map[string]int{}}
	svc := &Service{
		Store:         local.New(t.TempDir()),
		Repo:          repo,
		Dependents:    deps,
		Usage:         usage,
		MaxFileSize:   1 << 10,
		RetentionDays: 30,
	}
	return svc, repo, deps, usage
}

func TestUploadPlainText(t *testing.T) {
	svc, repo, _, usage := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, "user-1", "rent.txt", "text/plain", strings.NewReader(rentText))
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, doc.Status)
	require.Equal(t, rentText, doc.ExtractedText)
	require.Equal(t, 9, doc.WordCount)
	require.Equal(t, 1, doc.PageCount)
	require.Equal(t, "txt", doc.FileType)
	require.Equal(t, GeneralLegal, doc.DocumentType)
	require.NotNil(t, doc.ExpiresAt)
	require.Equal(t, 1, usage.calls["user-1"])

	stored, err := repo.GetByID(ctx, "user-1", doc.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, stored.Status)
	require.Equal(t, rentText, stored.ExtractedText)

	_, total, err := repo.List(ctx, "user-1", ListFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

func TestUploadValidation(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "user-1", "notes.exe", "", strings.NewReader("hello"))
	require.ErrorIs(t, err, ErrUnsupportedExt)

	_, err = svc.Upload(ctx, "user-1", "big.txt", "", strings.NewReader(strings.Repeat("a", 2<<10)))
	require.ErrorIs(t, err, ErrFileTooLarge)

	_, err = svc.Upload(ctx, "user-1", "empty.txt", "", strings.NewReader(""))
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Upload(ctx, "user-1", "", "", strings.NewReader("hello"))
	require.ErrorIs(t, err, ErrInvalidInput)

	_, total, err := repo.List(ctx, "user-1", ListFilter{})
	require.NoError(t, err)
	require.Zero(t, total, "rejected uploads must not create rows")
}

func TestUploadCorruptPDFKeepsFailedRow(t *testing.T) {
	svc, repo, _, usage := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, "user-1", "broken.pdf", "application/pdf", strings.NewReader("definitely not a pdf"))
	require.ErrorIs(t, err, extract.ErrCorruptFile)
	require.NotEmpty(t, doc.ID)
	require.Equal(t, StatusFailed, doc.Status)

	docs, total, err := repo.List(ctx, "user-1", ListFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, StatusFailed, docs[0].Status)
	require.NotEmpty(t, docs[0].ProcessingError)
	require.Zero(t, usage.calls["user-1"])
}

func TestGetIsOwnerScoped(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, "user-1", "rent.txt", "", strings.NewReader(rentText))
	require.NoError(t, err)

	_, err = svc.Get(ctx, "user-2", doc.ID)
	require.ErrorIs(t, err, ErrNotFound)

	err = svc.Delete(ctx, "user-2", doc.ID)
	require.ErrorIs(t, err, ErrNotFound)

	got, err := svc.Get(ctx, "user-1", doc.ID)
	require.NoError(t, err)
	require.Equal(t, doc.ID, got.ID)
}

func TestMalformedIDNeverReachesDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := &Service{Store: local.New(t.TempDir()), Repo: &PGRepo{DB: db}}
	ctx := context.Background()

	_, err = svc.Get(ctx, "user-1", "not-a-uuid")
	require.ErrorIs(t, err, ErrNotFound)
	_, _, err = svc.Open(ctx, "user-1", "../etc/passwd")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, "user-1", ""), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAcceptsUppercaseID(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, "user-1", "rent.txt", "", strings.NewReader(rentText))
	require.NoError(t, err)
	got, err := svc.Get(ctx, "user-1", strings.ToUpper(doc.ID))
	require.NoError(t, err)
	require.Equal(t, doc.ID, got.ID)
}

func TestListPaginatesAndFilters(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	svc.Now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	for i := 0; i < 3; i++ {
		_, err := svc.Upload(ctx, "user-1", "rent.txt", "", strings.NewReader(rentText))
		require.NoError(t, err)
	}
	_, err := svc.Upload(ctx, "user-1", "broken.pdf", "", strings.NewReader("junk"))
	require.Error(t, err)

	docs, total, err := svc.List(ctx, "user-1", ListFilter{Skip: 1, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 4, total)
	require.Len(t, docs, 2)
	require.True(t, docs[0].CreatedAt.After(docs[1].CreatedAt))

	failed, total, err := svc.List(ctx, "user-1", ListFilter{Status: StatusFailed})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "broken.pdf", failed[0].FileName)

	_, _, err = svc.List(ctx, "user-1", ListFilter{Status: "archived"})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestOpenStreamsOriginalBytes(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, "user-1", "rent.txt", "", strings.NewReader(rentText))
	require.NoError(t, err)

	got, rc, err := svc.Open(ctx, "user-1", doc.ID)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, rentText, string(body))
	require.Equal(t, "rent.txt", got.OriginalFilename)
}

func TestDeleteRemovesRowObjectAndDependents(t *testing.T) {
	svc, repo, deps, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, "user-1", "rent.txt", "", strings.NewReader(rentText))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "user-1", doc.ID))
	require.Equal(t, []string{doc.ID}, deps.ids)

	_, err = repo.GetByID(ctx, "user-1", doc.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Store.Open(ctx, doc.StorageKey)
	require.ErrorIs(t, err, object.ErrNotFound)
}

func TestPurgeExpired(t *testing.T) {
	svc, repo, deps, _ := newTestService(t)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return now }

	old, err := svc.Upload(ctx, "user-1", "old.txt", "", strings.NewReader(rentText))
	require.NoError(t, err)

	now = now.AddDate(0, 0, 20)
	fresh, err := svc.Upload(ctx, "user-1", "fresh.txt", "", strings.NewReader(rentText))
	require.NoError(t, err)

	now = now.AddDate(0, 0, 15)
	purged, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, purged)
	require.Equal(t, []string{old.ID}, deps.ids)

	_, err = repo.GetByID(ctx, "user-1", old.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByID(ctx, "user-1", fresh.ID)
	require.NoError(t, err)
}
