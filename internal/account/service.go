// Package account removes a user together with everything they own.
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"legaldoc-backend/internal/analyses"
	"legaldoc-backend/internal/documents"
	"legaldoc-backend/internal/shared/storage/object"
	"legaldoc-backend/internal/shared/telemetry"
	"legaldoc-backend/internal/users"
)

// ErrNotFound is returned when the user does not exist.
var ErrNotFound = users.ErrNotFound

type userDeleter interface {
	Delete(ctx context.Context, userID string) error
}

type byUserDeleter interface {
	DeleteByUser(ctx context.Context, userID string) error
}

type Service struct {
	DocRepo      documents.DocumentsRepo
	AnalysisRepo analyses.Repo
	UserRepo     userDeleter
	Store        object.ObjectStore
}

func NewService(docRepo documents.DocumentsRepo, analysisRepo analyses.Repo, userRepo userDeleter, store object.ObjectStore) *Service {
	return &Service{DocRepo: docRepo, AnalysisRepo: analysisRepo, UserRepo: userRepo, Store: store}
}

// DeleteUser removes the user's stored files, then their analyses, documents and account row.
// Object removal is best effort: a leftover file is logged and the rows are still deleted.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("userID is required")
	}

	keys, err := s.DocRepo.ListStorageKeys(ctx, userID)
	if err != nil {
		return fmt.Errorf("list storage keys: %w", err)
	}
	s.deleteObjects(ctx, userID, keys)

	if docPG, ok := s.DocRepo.(*documents.PGRepo); ok && docPG != nil && docPG.DB != nil {
		if _, ok := s.AnalysisRepo.(*analyses.PGRepo); ok {
			return deleteWithTx(ctx, docPG.DB, userID)
		}
	}

	if err := s.AnalysisRepo.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("delete analyses: %w", err)
	}
	if docs, ok := s.DocRepo.(byUserDeleter); ok {
		if err := docs.DeleteByUser(ctx, userID); err != nil {
			return fmt.Errorf("delete documents: %w", err)
		}
	} else {
		return errors.New("documents repo does not support delete by user")
	}
	return s.UserRepo.Delete(ctx, userID)
}

func deleteWithTx(ctx context.Context, db *sql.DB, userID string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM analyses WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete analyses: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *Service) deleteObjects(ctx context.Context, userID string, keys []string) {
	if s.Store == nil {
		return
	}
	failed := 0
	for _, key := range keys {
		if err := s.Store.Delete(ctx, key); err != nil {
			failed++
			telemetry.Warn("account.object_delete_failed", map[string]any{"storage_key": key, "error": err.Error()})
		}
	}
	telemetry.Info("account.objects_deleted", map[string]any{"user_id": userID, "objects": len(keys), "objects_failed": failed})
}
