package templates

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGRepo reads the catalog from Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectTemplateColumns = `
SELECT id, category, subcategory, name, description,
       common_clauses, risk_factors, key_terms, red_flags, standard_protections,
       glossary, question_templates, usage_count, effectiveness_score, last_used,
       is_active, created_at, updated_at
FROM legal_templates`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (Template, error) {
	var (
		t                                         Template
		clauses, risks, terms, flags, protections []byte
		glossary, questions                       []byte
		lastUsed                                  sql.NullTime
	)
	if err := row.Scan(
		&t.ID, &t.Category, &t.Subcategory, &t.Name, &t.Description,
		&clauses, &risks, &terms, &flags, &protections,
		&glossary, &questions, &t.UsageCount, &t.EffectivenessScore, &lastUsed,
		&t.Active, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return Template{}, err
	}
	fields := []struct {
		raw  []byte
		dest any
		name string
	}{
		{clauses, &t.CommonClauses, "common_clauses"},
		{risks, &t.RiskFactors, "risk_factors"},
		{terms, &t.KeyTerms, "key_terms"},
		{flags, &t.RedFlags, "red_flags"},
		{protections, &t.StandardProtections, "standard_protections"},
		{glossary, &t.Glossary, "glossary"},
		{questions, &t.QuestionTemplates, "question_templates"},
	}
	for _, f := range fields {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dest); err != nil {
			return Template{}, fmt.Errorf("decode %s: %w", f.name, err)
		}
	}
	if lastUsed.Valid {
		t.LastUsed = &lastUsed.Time
	}
	return t, nil
}

func (r *PGRepo) List(ctx context.Context) ([]Template, error) {
	rows, err := r.DB.QueryContext(ctx, selectTemplateColumns+`
ORDER BY category, subcategory`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PGRepo) GetActiveByCategory(ctx context.Context, category string) (Template, error) {
	row := r.DB.QueryRowContext(ctx, selectTemplateColumns+`
WHERE category = $1 AND is_active = TRUE
ORDER BY subcategory
LIMIT 1`, category)
	t, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Template{}, ErrNotFound
		}
		return Template{}, err
	}
	return t, nil
}

func (r *PGRepo) MarkUsed(ctx context.Context, id string, at time.Time) error {
	const query = `
UPDATE legal_templates
SET usage_count = usage_count + 1,
    last_used = $2
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, id, at)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PGRepo) UpdateEffectiveness(ctx context.Context, id string, rating float64) error {
	const query = `
UPDATE legal_templates
SET effectiveness_score = CASE
        WHEN effectiveness_score = 0 THEN $2
        ELSE (effectiveness_score + $2) / 2
    END,
    updated_at = NOW()
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, id, rating)
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

var _ Repo = (*PGRepo)(nil)
