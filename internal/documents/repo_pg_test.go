package documents

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

var documentRowColumns = []string{
	"id", "user_id", "file_name", "original_filename", "file_type", "mime_type", "file_size",
	"storage_provider", "storage_key", "extracted_text", "page_count", "word_count", "status",
	"document_type", "document_type_confidence", "processing_error", "retention_days",
	"expires_at", "created_at", "updated_at", "processed_at",
}

func TestPGRepoCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := now.AddDate(0, 0, 30)
	doc := Document{
		ID:            "doc-1",
		UserID:        "user-1",
		FileName:      "lease.txt",
		FileType:      "txt",
		MimeType:      "text/plain",
		SizeBytes:     42,
		StorageKey:    "u/abc_lease.txt",
		RetentionDays: 30,
		ExpiresAt:     &expires,
		CreatedAt:     now,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WithArgs(
			"doc-1", "user-1", "lease.txt", "lease.txt", "txt", "text/plain", int64(42),
			"local", "u/abc_lease.txt", nil, 0, 0, "uploaded",
			nil, 0.0, nil, 30, expires, now, now, nil,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := &PGRepo{DB: db}
	require.NoError(t, repo.Create(context.Background(), doc))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND id = $2")).
		WithArgs("user-2", "doc-1").
		WillReturnRows(sqlmock.NewRows(documentRowColumns))

	repo := &PGRepo{DB: db}
	_, err = repo.GetByID(context.Background(), "user-2", "doc-1")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoGetByIDScansNullableColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(documentRowColumns).AddRow(
		"doc-1", "user-1", "lease.txt", "Lease.txt", "txt", "text/plain", int64(42),
		"local", "u/abc_lease.txt", "Rent is due", 1, 3, "completed",
		"rental_agreement", 0.33, nil, 30,
		now.AddDate(0, 0, 30), now, now, now,
	)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, file_name")).
		WithArgs("user-1", "doc-1").
		WillReturnRows(rows)

	repo := &PGRepo{DB: db}
	got, err := repo.GetByID(context.Background(), "user-1", "doc-1")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)
	require.Equal(t, "Rent is due", got.ExtractedText)
	require.Equal(t, "rental_agreement", got.DocumentType)
	require.Empty(t, got.ProcessingError)
	require.NotNil(t, got.ExpiresAt)
	require.NotNil(t, got.ProcessedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoListReturnsTotal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("user-1", "completed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WithArgs("user-1", "completed", 2, 4).
		WillReturnRows(sqlmock.NewRows(documentRowColumns).AddRow(
			"doc-5", "user-1", "a.pdf", "a.pdf", "pdf", "application/pdf", int64(10),
			"s3", "k", nil, 2, 100, "completed",
			"loan_contract", 0.4, nil, 30,
			nil, now, now, nil,
		))

	repo := &PGRepo{DB: db}
	docs, total, err := repo.List(context.Background(), "user-1", ListFilter{Skip: 4, Limit: 2, Status: StatusCompleted})
	require.NoError(t, err)
	require.Equal(t, 7, total)
	require.Len(t, docs, 1)
	require.Equal(t, "doc-5", docs[0].ID)
	require.Empty(t, docs[0].ExtractedText)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoDeleteScopedToOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents WHERE user_id = $1 AND id = $2")).
		WithArgs("user-2", "doc-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := &PGRepo{DB: db}
	err = repo.Delete(context.Background(), "user-2", "doc-1")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := Document{
		ID:              "doc-1",
		UserID:          "user-1",
		Status:          StatusFailed,
		ProcessingError: "file could not be read",
		UpdatedAt:       now,
		ProcessedAt:     &now,
	}
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents")).
		WithArgs(nil, 0, 0, "failed", nil, 0.0, "file could not be read", now, now, "doc-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := &PGRepo{DB: db}
	require.NoError(t, repo.Update(context.Background(), doc))
	require.NoError(t, mock.ExpectationsWereMet())
}
