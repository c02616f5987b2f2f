package stores

import (
	"context"
	"time"

	"github.com/oarkflow/squealx"
)

// SQLAssignmentStore persists template assignments in SQL (squealx)
type SQLAssignmentStore struct {
	db *squealx.DB
}

func NewSQLAssignmentStore(db *squealx.DB) *SQLAssignmentStore {
	return &SQLAssignmentStore{db: db}
}

func (s *SQLAssignmentStore) Assign(ctx context.Context, resourceID, userID string) error {
	q := `INSERT OR IGNORE INTO template_assignments(resource_id, user_id, created_at) VALUES(:resource_id, :user_id, :created_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"resource_id": resourceID,
		"user_id":     userID,
		"created_at":  time.Now(),
	})
	return err
}

func (s *SQLAssignmentStore) Unassign(ctx context.Context, resourceID, userID string) error {
	q := `DELETE FROM template_assignments WHERE resource_id = :resource_id AND user_id = :user_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"resource_id": resourceID, "user_id": userID})
	return err
}

func (s *SQLAssignmentStore) Exists(ctx context.Context, resourceID, userID string) (bool, error) {
	q := `SELECT 1 FROM template_assignments WHERE resource_id = :resource_id AND user_id = :user_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"resource_id": resourceID, "user_id": userID})
	if err != nil {
		return false, err
	}
	defer r.Close()
	return r.Next(), nil
}

// SQLShareStore persists resource shares in SQL (squealx)
type SQLShareStore struct {
	db *squealx.DB
}

func NewSQLShareStore(db *squealx.DB) *SQLShareStore {
	return &SQLShareStore{db: db}
}

func (s *SQLShareStore) Share(ctx context.Context, resourceID, userID string) error {
	q := `INSERT OR IGNORE INTO resource_shares(resource_id, user_id, created_at) VALUES(:resource_id, :user_id, :created_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"resource_id": resourceID,
		"user_id":     userID,
		"created_at":  time.Now(),
	})
	return err
}

func (s *SQLShareStore) Unshare(ctx context.Context, resourceID, userID string) error {
	q := `DELETE FROM resource_shares WHERE resource_id = :resource_id AND user_id = :user_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"resource_id": resourceID, "user_id": userID})
	return err
}

func (s *SQLShareStore) Exists(ctx context.Context, resourceID, userID string) (bool, error) {
	q := `SELECT 1 FROM resource_shares WHERE resource_id = :resource_id AND user_id = :user_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"resource_id": resourceID, "user_id": userID})
	if err != nil {
		return false, err
	}
	defer r.Close()
	return r.Next(), nil
}
