package stores

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/oarkflow/squealx"
	_ "modernc.org/sqlite"

	"github.com/carebridge/authz"
)

func newTestDB(t *testing.T) *squealx.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	db := squealx.NewDb(sqlDB, "sqlite", "testdb")
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSQLGrantStores(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	as := NewSQLAssignmentStore(db)
	if err := as.Assign(ctx, "r1", "u1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	// Re-assigning is a no-op, not an error.
	if err := as.Assign(ctx, "r1", "u1"); err != nil {
		t.Fatalf("re-assign: %v", err)
	}
	ok, err := as.Exists(ctx, "r1", "u1")
	if err != nil || !ok {
		t.Fatalf("exists after assign: ok=%t err=%v", ok, err)
	}
	ok, err = as.Exists(ctx, "r1", "u2")
	if err != nil || ok {
		t.Fatalf("exists for other user: ok=%t err=%v", ok, err)
	}
	if err := as.Unassign(ctx, "r1", "u1"); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	ok, _ = as.Exists(ctx, "r1", "u1")
	if ok {
		t.Fatalf("assignment should be gone")
	}

	ss := NewSQLShareStore(db)
	if err := ss.Share(ctx, "r2", "u1"); err != nil {
		t.Fatalf("share: %v", err)
	}
	ok, err = ss.Exists(ctx, "r2", "u1")
	if err != nil || !ok {
		t.Fatalf("share exists: ok=%t err=%v", ok, err)
	}
	if err := ss.Unshare(ctx, "r2", "u1"); err != nil {
		t.Fatalf("unshare: %v", err)
	}
	ok, _ = ss.Exists(ctx, "r2", "u1")
	if ok {
		t.Fatalf("share should be gone")
	}
}

func TestSQLResourceStoreCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	gate, err := authz.NewVisibilityGate(NewSQLAssignmentStore(db), NewSQLShareStore(db))
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	rs := NewSQLResourceStore(db, gate)

	res := &authz.Resource{ID: "r1", CreatedBy: "u1", FamilyID: "f1", Visibility: authz.VisibilityFamily, SystemGenerated: false, Status: "active"}
	if err := rs.Put(ctx, res); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := rs.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *got != *res {
		t.Fatalf("round trip mismatch: %+v != %+v", got, res)
	}

	res.Visibility = authz.VisibilityPublic
	if err := rs.Put(ctx, res); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, _ = rs.Get(ctx, "r1")
	if got.Visibility != authz.VisibilityPublic {
		t.Fatalf("upsert did not replace")
	}

	if err := rs.Delete(ctx, "r1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := rs.Get(ctx, "r1"); err == nil {
		t.Fatalf("expected not-found after delete")
	}
}

// TestListVisibleMatchesGate drives the compiled SQL filter and the in-process
// gate over the same grid of viewers and resources and requires identical
// verdicts. Any drift between the two interpreters of ResourceFilter is a bug.
func TestListVisibleMatchesGate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	as := NewSQLAssignmentStore(db)
	ss := NewSQLShareStore(db)
	gate, err := authz.NewVisibilityGate(as, ss)
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	rs := NewSQLResourceStore(db, gate)

	resources := []*authz.Resource{
		{ID: "pub-1", CreatedBy: "u9", Visibility: authz.VisibilityPublic},
		{ID: "fam-1", CreatedBy: "u9", FamilyID: "f1", Visibility: authz.VisibilityFamily},
		{ID: "fam-2", CreatedBy: "u9", FamilyID: "f2", Visibility: authz.VisibilityFamily},
		{ID: "sh-1", CreatedBy: "u9", Visibility: authz.VisibilityShared},
		{ID: "priv-1", CreatedBy: "u1", Visibility: authz.VisibilityPrivate},
		{ID: "priv-2", CreatedBy: "", Visibility: authz.VisibilityPrivate},
		{ID: "sys-1", CreatedBy: "svc", Visibility: authz.VisibilityPrivate, SystemGenerated: true},
		{ID: "sys-2", CreatedBy: "svc", Visibility: authz.VisibilityPublic, SystemGenerated: true},
		{ID: "sys-fam", CreatedBy: "svc", FamilyID: "f1", Visibility: authz.VisibilityFamily, SystemGenerated: true},
	}
	for _, res := range resources {
		if err := rs.Put(ctx, res); err != nil {
			t.Fatalf("put %s: %v", res.ID, err)
		}
	}
	if err := as.Assign(ctx, "sys-1", "m1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := ss.Share(ctx, "sh-1", "m1"); err != nil {
		t.Fatalf("share: %v", err)
	}
	if err := ss.Share(ctx, "sh-1", "v1"); err != nil {
		t.Fatalf("share: %v", err)
	}

	viewers := []authz.Viewer{
		{UserID: "root", Role: authz.RoleAdmin},
		{UserID: "m1", Role: authz.RoleMember, FamilyID: "f1"},
		{UserID: "m2", Role: authz.RoleMember, FamilyID: "f2"},
		{UserID: "v1", Role: authz.RoleVolunteer, FamilyID: "f1"},
		{UserID: "u1", Role: authz.RoleMember},
		{UserID: "", Role: authz.RoleVolunteer},
	}
	for _, viewer := range viewers {
		listed, err := rs.ListVisible(ctx, viewer)
		if err != nil {
			t.Fatalf("list for %q: %v", viewer.UserID, err)
		}
		fromSQL := make(map[string]bool, len(listed))
		for _, res := range listed {
			fromSQL[res.ID] = true
		}
		for _, res := range resources {
			want, err := gate.CheckResourceAccess(ctx, viewer, res)
			if err != nil {
				t.Fatalf("gate %q/%s: %v", viewer.UserID, res.ID, err)
			}
			if fromSQL[res.ID] != want {
				t.Fatalf("viewer %q resource %s: sql=%t gate=%t", viewer.UserID, res.ID, fromSQL[res.ID], want)
			}
		}
	}
}

func TestSQLAuditStoreRoundtrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	store, _ := NewSQLAuditStore(db)

	base := time.Now().Truncate(time.Second)
	entries := []*authz.AuditEntry{
		{ID: "e1", Timestamp: base, TraceID: "t1", UserID: "u1", Role: authz.RoleMember, ResourceType: "message", Operation: authz.OpDelete, Level: authz.LevelDelete, Allowed: true, Reason: "ok"},
		{ID: "e2", Timestamp: base.Add(time.Second), UserID: "u2", Role: authz.RoleMember, ResourceType: "message", Operation: authz.OpDelete, Level: authz.LevelNone, Allowed: false, Reason: "denied"},
		{ID: "e3", Timestamp: base.Add(2 * time.Second), UserID: "u1", Role: authz.RoleMember, ResourceType: "care_plan", Operation: authz.OpRead, Level: authz.LevelRead, Allowed: true, Reason: "ok"},
	}
	for _, e := range entries {
		if err := store.LogDecision(ctx, e); err != nil {
			t.Fatalf("log %s: %v", e.ID, err)
		}
	}

	got, err := store.GetDecisionLog(ctx, authz.AuditFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("get by user: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries for u1, got %d", len(got))
	}
	first := got[0]
	if first.TraceID != "t1" || first.Level != authz.LevelDelete || !first.Allowed || first.Operation != authz.OpDelete {
		t.Fatalf("fields lost in round trip: %+v", first)
	}
	if first.Timestamp.IsZero() {
		t.Fatalf("timestamp not recovered")
	}

	got, err = store.GetDecisionLog(ctx, authz.AuditFilter{ResourceType: "care_plan"})
	if err != nil {
		t.Fatalf("get by type: %v", err)
	}
	if len(got) != 1 || got[0].ID != "e3" {
		t.Fatalf("type filter failed: %+v", got)
	}

	got, err = store.GetDecisionLog(ctx, authz.AuditFilter{Limit: 1})
	if err != nil {
		t.Fatalf("get with limit: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("limit ignored, got %d", len(got))
	}
}
