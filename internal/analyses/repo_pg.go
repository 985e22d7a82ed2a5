package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectAnalysis = `
SELECT id, user_id, document_id, template_id, request_id, analysis_type, language, focus_areas,
       model_used, summary, result, question, answer, confidence_score, processing_time_ms,
       prompt_tokens, completion_tokens, status, error_code, error_message, user_rating,
       user_feedback, created_at, updated_at, completed_at
FROM analyses`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var (
		a            Analysis
		templateID   sql.NullString
		requestID    sql.NullString
		focusAreas   []byte
		summary      sql.NullString
		result       []byte
		question     sql.NullString
		answer       sql.NullString
		errorCode    sql.NullString
		errorMessage sql.NullString
		userRating   sql.NullInt64
		userFeedback sql.NullString
		completedAt  sql.NullTime
	)
	if err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.DocumentID,
		&templateID,
		&requestID,
		&a.AnalysisType,
		&a.Language,
		&focusAreas,
		&a.ModelUsed,
		&summary,
		&result,
		&question,
		&answer,
		&a.ConfidenceScore,
		&a.ProcessingTimeMs,
		&a.PromptTokens,
		&a.CompletionTokens,
		&a.Status,
		&errorCode,
		&errorMessage,
		&userRating,
		&userFeedback,
		&a.CreatedAt,
		&a.UpdatedAt,
		&completedAt,
	); err != nil {
		return Analysis{}, err
	}
	a.TemplateID = templateID.String
	a.RequestID = requestID.String
	a.Summary = summary.String
	a.Question = question.String
	a.Answer = answer.String
	a.ErrorCode = errorCode.String
	a.ErrorMessage = errorMessage.String
	a.UserFeedback = userFeedback.String
	if userRating.Valid {
		rating := int(userRating.Int64)
		a.UserRating = &rating
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}
	a.FocusAreas = []string{}
	if len(focusAreas) > 0 {
		if err := json.Unmarshal(focusAreas, &a.FocusAreas); err != nil {
			return Analysis{}, fmt.Errorf("decode focus_areas: %w", err)
		}
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &a.Result); err != nil {
			return Analysis{}, fmt.Errorf("decode result: %w", err)
		}
	}
	return a, nil
}

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, a Analysis) error {
	const query = `
INSERT INTO analyses (
    id, user_id, document_id, template_id, request_id, analysis_type, language, focus_areas,
    model_used, summary, result, question, answer, confidence_score, processing_time_ms,
    prompt_tokens, completion_tokens, status, error_code, error_message, created_at,
    updated_at, completed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`

	focusAreas := a.FocusAreas
	if focusAreas == nil {
		focusAreas = []string{}
	}
	focusPayload, err := json.Marshal(focusAreas)
	if err != nil {
		return err
	}
	resultPayload, err := json.Marshal(a.Result)
	if err != nil {
		return err
	}
	updatedAt := a.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = a.CreatedAt
	}

	_, err = r.DB.ExecContext(ctx, query,
		a.ID,
		a.UserID,
		a.DocumentID,
		nullString(a.TemplateID),
		nullString(a.RequestID),
		a.AnalysisType,
		a.Language,
		string(focusPayload),
		a.ModelUsed,
		nullString(a.Summary),
		string(resultPayload),
		nullString(a.Question),
		nullString(a.Answer),
		a.ConfidenceScore,
		a.ProcessingTimeMs,
		a.PromptTokens,
		a.CompletionTokens,
		a.Status,
		nullString(a.ErrorCode),
		nullString(a.ErrorMessage),
		a.CreatedAt,
		updatedAt,
		nullTime(a.CompletedAt),
	)
	if isUniqueViolation(err) {
		return ErrDuplicateRequest
	}
	return err
}

// GetByID returns an analysis owned by userID.
func (r *PGRepo) GetByID(ctx context.Context, userID, analysisID string) (Analysis, error) {
	row := r.DB.QueryRowContext(ctx, selectAnalysis+` WHERE id = $1 AND user_id = $2`, analysisID, userID)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	return a, err
}

func (r *PGRepo) GetByRequestID(ctx context.Context, userID, requestID string) (Analysis, error) {
	row := r.DB.QueryRowContext(ctx, selectAnalysis+` WHERE user_id = $1 AND request_id = $2`, userID, requestID)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	return a, err
}

// List returns a page of the user's analyses newest first and the total match count.
func (r *PGRepo) List(ctx context.Context, userID string, filter ListFilter) ([]Analysis, int, error) {
	filter = filter.normalized()
	const where = ` WHERE user_id = $1 AND ($2 = '' OR document_id::text = $2) AND ($3 = '' OR analysis_type = $3)`

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses`+where,
		userID, filter.DocumentID, filter.AnalysisType,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.QueryContext(ctx, selectAnalysis+where+` ORDER BY created_at DESC, id DESC LIMIT $4 OFFSET $5`,
		userID, filter.DocumentID, filter.AnalysisType, filter.Limit, filter.Skip,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *PGRepo) UpdateFeedback(ctx context.Context, userID, analysisID string, rating int, feedback string, at time.Time) error {
	const query = `
UPDATE analyses
SET user_rating = $1, user_feedback = $2, updated_at = $3
WHERE id = $4 AND user_id = $5`
	res, err := r.DB.ExecContext(ctx, query, rating, nullString(feedback), at, analysisID, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteByDocument is a no-op when the document row is already gone; the FK cascade covers that case.
func (r *PGRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM analyses WHERE document_id = $1`, documentID)
	return err
}

func (r *PGRepo) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM analyses WHERE user_id = $1`, userID)
	return err
}

func (r *PGRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses WHERE user_id = $1`, userID).Scan(&n)
	return n, err
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
