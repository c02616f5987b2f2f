package stores

import (
	"context"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/carebridge/authz"
)

// SQLAuditStore persists decision audit entries in SQL (squealx)
type SQLAuditStore struct {
	db *squealx.DB
}

func NewSQLAuditStore(db *squealx.DB) (*SQLAuditStore, error) {
	return &SQLAuditStore{db: db}, nil
}

func (s *SQLAuditStore) LogDecision(ctx context.Context, entry *authz.AuditEntry) error {
	q := `INSERT INTO decision_log(id, timestamp, trace_id, user_id, role, resource_type, operation, level, allowed, reason) VALUES(:id, :timestamp, :trace_id, :user_id, :role, :resource_type, :operation, :level, :allowed, :reason)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":            entry.ID,
		"timestamp":     entry.Timestamp,
		"trace_id":      entry.TraceID,
		"user_id":       entry.UserID,
		"role":          string(entry.Role),
		"resource_type": entry.ResourceType,
		"operation":     string(entry.Operation),
		"level":         entry.Level.String(),
		"allowed":       boolToInt(entry.Allowed),
		"reason":        entry.Reason,
	})
	return err
}

func (s *SQLAuditStore) GetDecisionLog(ctx context.Context, filter authz.AuditFilter) ([]*authz.AuditEntry, error) {
	q := `SELECT id, timestamp, trace_id, user_id, role, resource_type, operation, level, allowed, reason FROM decision_log WHERE 1=1`
	params := map[string]any{}
	if filter.UserID != "" {
		q += " AND user_id = :user_id"
		params["user_id"] = filter.UserID
	}
	if filter.ResourceType != "" {
		q += " AND resource_type = :resource_type"
		params["resource_type"] = filter.ResourceType
	}
	if !filter.StartTime.IsZero() {
		q += " AND timestamp >= :start"
		params["start"] = filter.StartTime
	}
	if !filter.EndTime.IsZero() {
		q += " AND timestamp <= :end"
		params["end"] = filter.EndTime
	}
	q += " ORDER BY timestamp"
	if filter.Limit > 0 {
		q += " LIMIT :limit"
		params["limit"] = filter.Limit
	} else {
		q += " LIMIT 100"
	}
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*authz.AuditEntry, 0)
	for r.Next() {
		var id, traceID, userID, role, resourceType, operation, level, reason string
		var timestampRaw interface{}
		var allowedInt int
		if err := r.Scan(&id, &timestampRaw, &traceID, &userID, &role, &resourceType, &operation, &level, &allowedInt, &reason); err != nil {
			return nil, err
		}
		entry := &authz.AuditEntry{
			ID:           id,
			TraceID:      traceID,
			UserID:       userID,
			Role:         authz.Role(role),
			ResourceType: resourceType,
			Operation:    authz.Operation(operation),
			Allowed:      allowedInt != 0,
			Reason:       reason,
		}
		switch v := timestampRaw.(type) {
		case time.Time:
			entry.Timestamp = v
		case string:
			if t, err := parseFlexibleTime(v); err == nil {
				entry.Timestamp = t
			}
		case []byte:
			if t, err := parseFlexibleTime(string(v)); err == nil {
				entry.Timestamp = t
			}
		}
		if lvl, err := authz.ParseAccessLevel(level); err == nil {
			entry.Level = lvl
		}
		out = append(out, entry)
	}
	return out, nil
}
