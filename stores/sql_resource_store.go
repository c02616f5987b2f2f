package stores

import (
	"context"
	"fmt"

	"github.com/oarkflow/squealx"

	"github.com/carebridge/authz"
)

// SQLResourceStore persists resources in SQL (squealx). ListVisible compiles
// the gate's ResourceFilter into the WHERE clause instead of fetching rows and
// filtering in process.
type SQLResourceStore struct {
	db   *squealx.DB
	gate *authz.VisibilityGate
}

func NewSQLResourceStore(db *squealx.DB, gate *authz.VisibilityGate) *SQLResourceStore {
	return &SQLResourceStore{db: db, gate: gate}
}

func (s *SQLResourceStore) Put(ctx context.Context, res *authz.Resource) error {
	q := `INSERT OR REPLACE INTO resources(id, created_by, family_id, visibility, system_generated, status) VALUES(:id, :created_by, :family_id, :visibility, :system_generated, :status)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":               res.ID,
		"created_by":       res.CreatedBy,
		"family_id":        res.FamilyID,
		"visibility":       string(res.Visibility),
		"system_generated": boolToInt(res.SystemGenerated),
		"status":           res.Status,
	})
	return err
}

func (s *SQLResourceStore) Delete(ctx context.Context, id string) error {
	q := `DELETE FROM resources WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": id})
	return err
}

func (s *SQLResourceStore) Get(ctx context.Context, id string) (*authz.Resource, error) {
	q := `SELECT id, created_by, family_id, visibility, system_generated, status FROM resources WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("resource not found: %s", id)
	}
	return scanResource(r)
}

func (s *SQLResourceStore) ListVisible(ctx context.Context, viewer authz.Viewer) ([]*authz.Resource, error) {
	clause, params := s.gate.FilterFor(viewer).SQL("r")
	q := `SELECT r.id, r.created_by, r.family_id, r.visibility, r.system_generated, r.status FROM resources r WHERE ` + clause + ` ORDER BY r.id`
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*authz.Resource, 0)
	for r.Next() {
		res, err := scanResource(r)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(r rowScanner) (*authz.Resource, error) {
	var id, createdBy, familyID, visibility, status string
	var systemInt int
	if err := r.Scan(&id, &createdBy, &familyID, &visibility, &systemInt, &status); err != nil {
		return nil, err
	}
	return &authz.Resource{
		ID:              id,
		CreatedBy:       createdBy,
		FamilyID:        familyID,
		Visibility:      authz.Visibility(visibility),
		SystemGenerated: systemInt != 0,
		Status:          status,
	}, nil
}
