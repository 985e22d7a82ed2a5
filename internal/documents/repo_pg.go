package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements DocumentsRepo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, user_id, file_name, original_filename, file_type, mime_type, file_size,
       storage_provider, storage_key, %s, page_count, word_count, status,
       document_type, document_type_confidence, processing_error, retention_days,
       expires_at, created_at, updated_at, processed_at`

// Listings skip the extracted text column; it can be large and is only needed by detail reads.
var (
	selectDocument     = `SELECT ` + columnsWithText("extracted_text") + ` FROM documents`
	selectDocumentList = `SELECT ` + columnsWithText("NULL") + ` FROM documents`
)

func columnsWithText(expr string) string {
	return fmt.Sprintf(documentColumns, expr)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var (
		doc         Document
		status      string
		extracted   sql.NullString
		docType     sql.NullString
		procErr     sql.NullString
		expiresAt   sql.NullTime
		processedAt sql.NullTime
	)
	if err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.FileName,
		&doc.OriginalFilename,
		&doc.FileType,
		&doc.MimeType,
		&doc.SizeBytes,
		&doc.StorageProvider,
		&doc.StorageKey,
		&extracted,
		&doc.PageCount,
		&doc.WordCount,
		&status,
		&docType,
		&doc.DocumentTypeConfidence,
		&procErr,
		&doc.RetentionDays,
		&expiresAt,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&processedAt,
	); err != nil {
		return Document{}, err
	}
	doc.Status = Status(status)
	if extracted.Valid {
		doc.ExtractedText = extracted.String
	}
	if docType.Valid {
		doc.DocumentType = docType.String
	}
	if procErr.Valid {
		doc.ProcessingError = procErr.String
	}
	if expiresAt.Valid {
		doc.ExpiresAt = &expiresAt.Time
	}
	if processedAt.Valid {
		doc.ProcessedAt = &processedAt.Time
	}
	return doc, nil
}

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    user_id,
    file_name,
    original_filename,
    file_type,
    mime_type,
    file_size,
    storage_provider,
    storage_key,
    extracted_text,
    page_count,
    word_count,
    status,
    document_type,
    document_type_confidence,
    processing_error,
    retention_days,
    expires_at,
    created_at,
    updated_at,
    processed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

	originalName := doc.OriginalFilename
	if originalName == "" {
		originalName = doc.FileName
	}
	storageProvider := doc.StorageProvider
	if storageProvider == "" {
		storageProvider = "local"
	}
	status := doc.Status
	if status == "" {
		status = StatusUploaded
	}
	updatedAt := doc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = doc.CreatedAt
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.UserID,
		doc.FileName,
		originalName,
		doc.FileType,
		doc.MimeType,
		doc.SizeBytes,
		storageProvider,
		doc.StorageKey,
		nullString(doc.ExtractedText),
		doc.PageCount,
		doc.WordCount,
		string(status),
		nullString(doc.DocumentType),
		doc.DocumentTypeConfidence,
		nullString(doc.ProcessingError),
		doc.RetentionDays,
		nullTime(doc.ExpiresAt),
		doc.CreatedAt,
		updatedAt,
		nullTime(doc.ProcessedAt),
	)
	return err
}

// Update persists processing results for a document.
func (r *PGRepo) Update(ctx context.Context, doc Document) error {
	const query = `
UPDATE documents
SET extracted_text = $1,
    page_count = $2,
    word_count = $3,
    status = $4,
    document_type = $5,
    document_type_confidence = $6,
    processing_error = $7,
    updated_at = $8,
    processed_at = $9
WHERE id = $10 AND user_id = $11`
	res, err := r.DB.ExecContext(
		ctx,
		query,
		nullString(doc.ExtractedText),
		doc.PageCount,
		doc.WordCount,
		string(doc.Status),
		nullString(doc.DocumentType),
		doc.DocumentTypeConfidence,
		nullString(doc.ProcessingError),
		doc.UpdatedAt,
		nullTime(doc.ProcessedAt),
		doc.ID,
		doc.UserID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// GetByID fetches a document by ID for a user.
func (r *PGRepo) GetByID(ctx context.Context, userID, documentID string) (Document, error) {
	query := selectDocument + `
WHERE user_id = $1 AND id = $2
LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, userID, documentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// List lists documents ordered newest-first together with the unpaged total.
func (r *PGRepo) List(ctx context.Context, userID string, filter ListFilter) ([]Document, int, error) {
	filter = filter.normalized()

	const countQuery = `
SELECT COUNT(*)
FROM documents
WHERE user_id = $1 AND ($2 = '' OR status = $2)`
	var total int
	if err := r.DB.QueryRowContext(ctx, countQuery, userID, string(filter.Status)).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := selectDocumentList + `
WHERE user_id = $1 AND ($2 = '' OR status = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`
	rows, err := r.DB.QueryContext(ctx, query, userID, string(filter.Status), filter.Limit, filter.Skip)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, doc)
	}
	return out, total, rows.Err()
}

// Delete removes a document owned by the user. Analyses cascade.
func (r *PGRepo) Delete(ctx context.Context, userID, documentID string) error {
	const query = `DELETE FROM documents WHERE user_id = $1 AND id = $2`
	res, err := r.DB.ExecContext(ctx, query, userID, documentID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PGRepo) ListStorageKeys(ctx context.Context, userID string) ([]string, error) {
	const query = `
SELECT storage_key
FROM documents
WHERE user_id = $1 AND storage_key <> ''
ORDER BY storage_key`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *PGRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := selectDocumentList + `
WHERE expires_at IS NOT NULL AND expires_at <= $1
ORDER BY expires_at ASC
LIMIT $2`
	rows, err := r.DB.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (r *PGRepo) DeleteByID(ctx context.Context, documentID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, documentID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ DocumentsRepo = (*PGRepo)(nil)
