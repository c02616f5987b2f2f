package authz

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeGrantStore struct {
	grants map[string]bool // resourceID+"/"+userID
	err    error
}

func (s *fakeGrantStore) Exists(ctx context.Context, resourceID, userID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.grants[resourceID+"/"+userID], nil
}

type fakeDirectory struct {
	users map[string]*UserInfo
}

func (d *fakeDirectory) Lookup(ctx context.Context, userID string) (*UserInfo, error) {
	info, ok := d.users[userID]
	if !ok {
		return nil, errors.New("no such user")
	}
	return info, nil
}

func newTestGate(t *testing.T, assignments, shares map[string]bool, opts ...GateOption) *VisibilityGate {
	t.Helper()
	g, err := NewVisibilityGate(
		&fakeGrantStore{grants: assignments},
		&fakeGrantStore{grants: shares},
		opts...,
	)
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	return g
}

func TestGateRequiresStores(t *testing.T) {
	if _, err := NewVisibilityGate(nil, &fakeGrantStore{}); err == nil {
		t.Fatalf("nil assignment store must be rejected")
	}
	if _, err := NewVisibilityGate(&fakeGrantStore{}, nil); err == nil {
		t.Fatalf("nil share store must be rejected")
	}
}

func TestGateAdminSeesEverything(t *testing.T) {
	g := newTestGate(t, nil, nil)
	res := &Resource{ID: "r1", CreatedBy: "u9", Visibility: VisibilityPrivate, SystemGenerated: true}
	ok, err := g.CheckResourceAccess(context.Background(), Viewer{UserID: "root", Role: RoleAdmin}, res)
	if err != nil || !ok {
		t.Fatalf("admin should see private system resources: ok=%t err=%v", ok, err)
	}
}

func TestGateCreatorOverride(t *testing.T) {
	g := newTestGate(t, nil, nil)
	// Creator access holds even for a private, system-generated resource a
	// MEMBER would otherwise need an assignment for.
	res := &Resource{ID: "r1", CreatedBy: "u1", Visibility: VisibilityPrivate, SystemGenerated: true}
	ok, err := g.CheckResourceAccess(context.Background(), Viewer{UserID: "u1", Role: RoleMember}, res)
	if err != nil || !ok {
		t.Fatalf("creator should always see their resource: ok=%t err=%v", ok, err)
	}
}

func TestGateEmptyCreatorNeverMatchesEmptyViewer(t *testing.T) {
	g := newTestGate(t, nil, nil)
	res := &Resource{ID: "r1", CreatedBy: "", Visibility: VisibilityPrivate}
	ok, err := g.CheckResourceAccess(context.Background(), Viewer{UserID: "", Role: RoleVolunteer}, res)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if ok {
		t.Fatalf("empty creator must not match an empty viewer id")
	}
}

func TestGateMemberSystemResourceRequiresAssignment(t *testing.T) {
	assignments := map[string]bool{"tpl-1/u1": true}
	g := newTestGate(t, assignments, nil)
	ctx := context.Background()

	// Assigned member sees the resource regardless of visibility tier.
	private := &Resource{ID: "tpl-1", CreatedBy: "svc", Visibility: VisibilityPrivate, SystemGenerated: true}
	ok, err := g.CheckResourceAccess(ctx, Viewer{UserID: "u1", Role: RoleMember}, private)
	if err != nil || !ok {
		t.Fatalf("assigned member should see the system resource: ok=%t err=%v", ok, err)
	}

	// Unassigned member is denied even when the resource is PUBLIC: the
	// assignment step decides outright for MEMBER x system-generated.
	public := &Resource{ID: "tpl-2", CreatedBy: "svc", Visibility: VisibilityPublic, SystemGenerated: true}
	ok, err = g.CheckResourceAccess(ctx, Viewer{UserID: "u1", Role: RoleMember}, public)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if ok {
		t.Fatalf("unassigned member must not see a public system resource")
	}

	// A volunteer skips the assignment step and reads the public tier.
	ok, err = g.CheckResourceAccess(ctx, Viewer{UserID: "v1", Role: RoleVolunteer}, public)
	if err != nil || !ok {
		t.Fatalf("volunteer should fall through to the visibility tiers: ok=%t err=%v", ok, err)
	}
}

func TestGateVisibilityTiers(t *testing.T) {
	shares := map[string]bool{"r-shared/u1": true}
	g := newTestGate(t, nil, shares)
	ctx := context.Background()
	viewer := Viewer{UserID: "u1", Role: RoleVolunteer, FamilyID: "f1"}

	cases := []struct {
		name string
		res  *Resource
		want bool
	}{
		{"public", &Resource{ID: "r-pub", CreatedBy: "x", Visibility: VisibilityPublic}, true},
		{"family match", &Resource{ID: "r-fam", CreatedBy: "x", FamilyID: "f1", Visibility: VisibilityFamily}, true},
		{"family mismatch", &Resource{ID: "r-fam2", CreatedBy: "x", FamilyID: "f2", Visibility: VisibilityFamily}, false},
		{"shared with viewer", &Resource{ID: "r-shared", CreatedBy: "x", Visibility: VisibilityShared}, true},
		{"shared with someone else", &Resource{ID: "r-other", CreatedBy: "x", Visibility: VisibilityShared}, false},
		{"private", &Resource{ID: "r-priv", CreatedBy: "x", Visibility: VisibilityPrivate}, false},
		{"unknown tier", &Resource{ID: "r-odd", CreatedBy: "x", Visibility: Visibility("LIMITED")}, false},
	}
	for _, tc := range cases {
		ok, err := g.CheckResourceAccess(ctx, viewer, tc.res)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if ok != tc.want {
			t.Fatalf("%s: got %t, want %t", tc.name, ok, tc.want)
		}
	}
}

func TestGateMemberFamilyTier(t *testing.T) {
	// A MEMBER looking at an ordinary (not system-generated) resource goes
	// through the visibility tiers like anyone else.
	g := newTestGate(t, nil, nil)
	ctx := context.Background()
	viewer := Viewer{UserID: "u1", Role: RoleMember, FamilyID: "f1"}

	same := &Resource{ID: "r1", CreatedBy: "other", FamilyID: "f1", Visibility: VisibilityFamily}
	ok, err := g.CheckResourceAccess(ctx, viewer, same)
	if err != nil || !ok {
		t.Fatalf("member should see their family's resource: ok=%t err=%v", ok, err)
	}

	other := &Resource{ID: "r2", CreatedBy: "other", FamilyID: "f2", Visibility: VisibilityFamily}
	ok, err = g.CheckResourceAccess(ctx, viewer, other)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if ok {
		t.Fatalf("member must not see another family's resource")
	}
}

func TestGateFamilyTierRequiresNonEmptyFamily(t *testing.T) {
	g := newTestGate(t, nil, nil)
	res := &Resource{ID: "r1", CreatedBy: "x", FamilyID: "", Visibility: VisibilityFamily}
	ok, err := g.CheckResourceAccess(context.Background(), Viewer{UserID: "u1", Role: RoleVolunteer, FamilyID: ""}, res)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if ok {
		t.Fatalf("empty family ids must not count as a family match")
	}
}

func TestGateStoreErrorsDeny(t *testing.T) {
	boom := errors.New("store down")
	g, err := NewVisibilityGate(&fakeGrantStore{err: boom}, &fakeGrantStore{err: boom})
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	ctx := context.Background()

	system := &Resource{ID: "r1", CreatedBy: "x", Visibility: VisibilityPrivate, SystemGenerated: true}
	ok, err := g.CheckResourceAccess(ctx, Viewer{UserID: "u1", Role: RoleMember}, system)
	if ok || !errors.Is(err, boom) {
		t.Fatalf("assignment store error must deny and surface: ok=%t err=%v", ok, err)
	}

	shared := &Resource{ID: "r2", CreatedBy: "x", Visibility: VisibilityShared}
	ok, err = g.CheckResourceAccess(ctx, Viewer{UserID: "u1", Role: RoleVolunteer}, shared)
	if ok || !errors.Is(err, boom) {
		t.Fatalf("share store error must deny and surface: ok=%t err=%v", ok, err)
	}
}

func TestGateNilResource(t *testing.T) {
	g := newTestGate(t, nil, nil)
	if _, err := g.CheckResourceAccess(context.Background(), Viewer{UserID: "u1"}, nil); err == nil {
		t.Fatalf("nil resource must error")
	}
}

func TestCheckUserAccess(t *testing.T) {
	dir := &fakeDirectory{users: map[string]*UserInfo{
		"u1": {Role: RoleVolunteer, FamilyID: "f1"},
	}}
	g := newTestGate(t, nil, nil, WithUserDirectory(dir))
	ctx := context.Background()

	res := &Resource{ID: "r1", CreatedBy: "x", FamilyID: "f1", Visibility: VisibilityFamily}
	ok, err := g.CheckUserAccess(ctx, "u1", res)
	if err != nil || !ok {
		t.Fatalf("resolved viewer should pass the family tier: ok=%t err=%v", ok, err)
	}

	if _, err := g.CheckUserAccess(ctx, "ghost", res); err == nil {
		t.Fatalf("unknown user must error")
	}

	bare := newTestGate(t, nil, nil)
	if _, err := bare.CheckUserAccess(ctx, "u1", res); err == nil {
		t.Fatalf("gate without a directory must error")
	}
}

func TestFilterMatchAgreesWithGate(t *testing.T) {
	assignments := map[string]bool{"sys-1/m1": true}
	shares := map[string]bool{"sh-1/m1": true}
	g := newTestGate(t, assignments, shares)
	ctx := context.Background()

	viewers := []Viewer{
		{UserID: "root", Role: RoleAdmin},
		{UserID: "m1", Role: RoleMember, FamilyID: "f1"},
		{UserID: "v1", Role: RoleVolunteer, FamilyID: "f2"},
	}
	resources := []*Resource{
		{ID: "sys-1", CreatedBy: "svc", Visibility: VisibilityPrivate, SystemGenerated: true},
		{ID: "sys-2", CreatedBy: "svc", Visibility: VisibilityPublic, SystemGenerated: true},
		{ID: "sh-1", CreatedBy: "x", Visibility: VisibilityShared},
		{ID: "fam-1", CreatedBy: "x", FamilyID: "f1", Visibility: VisibilityFamily},
		{ID: "own-1", CreatedBy: "m1", Visibility: VisibilityPrivate},
	}
	for _, v := range viewers {
		f := g.FilterFor(v)
		for _, res := range resources {
			direct, err := g.CheckResourceAccess(ctx, v, res)
			if err != nil {
				t.Fatalf("gate %s/%s: %v", v.UserID, res.ID, err)
			}
			viaFilter, err := g.Match(ctx, f, res)
			if err != nil {
				t.Fatalf("filter %s/%s: %v", v.UserID, res.ID, err)
			}
			if direct != viaFilter {
				t.Fatalf("filter disagrees with gate for %s/%s", v.UserID, res.ID)
			}
		}
	}
}

func TestFilterSQLShape(t *testing.T) {
	f := &ResourceFilter{Viewer: Viewer{UserID: "u1", Role: RoleMember, FamilyID: "f1"}}
	clause, params := f.SQL("r")
	for _, want := range []string{"r.visibility", "r.created_by", "template_assignments", "resource_shares", ":viewer_id"} {
		if !strings.Contains(clause, want) {
			t.Fatalf("clause missing %q:\n%s", want, clause)
		}
	}
	if params["viewer_id"] != "u1" || params["viewer_role"] != "MEMBER" || params["viewer_family_id"] != "f1" {
		t.Fatalf("unexpected params: %v", params)
	}

	bare, _ := f.SQL("")
	if strings.Contains(bare, ".visibility") {
		t.Fatalf("empty alias should not produce dotted columns:\n%s", bare)
	}
}
