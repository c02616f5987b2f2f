package authz

import (
	"context"
	"fmt"

	"github.com/carebridge/authz/logger"
)

// ============================================================================
// RESOURCE VISIBILITY GATE
// ============================================================================

// VisibilityGate is the second authorization layer, applied to concrete
// resource instances after (and independently of) the rule engine. Unlike the
// engine's max-over-rules scan, the gate is veto style: the first matching
// step decides.
type VisibilityGate struct {
	assignments AssignmentStore
	shares      ShareStore
	users       UserDirectory
	logger      logger.Logger
}

// GateOption configures a VisibilityGate at construction time.
type GateOption func(*VisibilityGate) error

// WithGateLogger installs a structured logger on the gate.
func WithGateLogger(l logger.Logger) GateOption {
	return func(g *VisibilityGate) error {
		g.logger = l
		return nil
	}
}

// WithUserDirectory lets the gate resolve viewers by user ID.
func WithUserDirectory(d UserDirectory) GateOption {
	return func(g *VisibilityGate) error {
		g.users = d
		return nil
	}
}

func NewVisibilityGate(assignments AssignmentStore, shares ShareStore, opts ...GateOption) (*VisibilityGate, error) {
	if assignments == nil || shares == nil {
		return nil, fmt.Errorf("visibility gate requires assignment and share stores")
	}
	g := &VisibilityGate{
		assignments: assignments,
		shares:      shares,
		logger:      logger.NewNullLogger(),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// CheckResourceAccess decides whether the viewer may see the resource.
// Precedence, first match decides:
//
//  1. platform ADMIN
//  2. creator (holds even for PRIVATE, system-generated resources)
//  3. MEMBER looking at a system-generated resource: an assignment row is
//     required and decides outright; visibility tiers never apply here.
//     VOLUNTEER deliberately skips this step and falls through to the tiers.
//  4. visibility tiers: PUBLIC; FAMILY when the resource's family matches the
//     viewer's; SHARED when a share row exists; PRIVATE or anything else
//     denies.
//
// Store lookup failures deny and surface the error.
func (g *VisibilityGate) CheckResourceAccess(ctx context.Context, viewer Viewer, res *Resource) (bool, error) {
	if res == nil {
		return false, fmt.Errorf("nil resource")
	}
	if viewer.Role == RoleAdmin {
		return true, nil
	}
	if res.CreatedBy != "" && res.CreatedBy == viewer.UserID {
		return true, nil
	}
	if viewer.Role == RoleMember && res.SystemGenerated {
		assigned, err := g.assignments.Exists(ctx, res.ID, viewer.UserID)
		if err != nil {
			return false, fmt.Errorf("assignment lookup for resource %s: %w", res.ID, err)
		}
		if !assigned {
			g.logger.Debug("member denied unassigned system resource",
				"user", viewer.UserID, "resource", res.ID)
		}
		return assigned, nil
	}
	switch res.Visibility {
	case VisibilityPublic:
		return true, nil
	case VisibilityFamily:
		return res.FamilyID != "" && res.FamilyID == viewer.FamilyID, nil
	case VisibilityShared:
		shared, err := g.shares.Exists(ctx, res.ID, viewer.UserID)
		if err != nil {
			return false, fmt.Errorf("share lookup for resource %s: %w", res.ID, err)
		}
		return shared, nil
	default:
		return false, nil
	}
}

// CheckUserAccess resolves the viewer through the user directory and then
// applies CheckResourceAccess.
func (g *VisibilityGate) CheckUserAccess(ctx context.Context, userID string, res *Resource) (bool, error) {
	if g.users == nil {
		return false, fmt.Errorf("no user directory configured")
	}
	info, err := g.users.Lookup(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("user lookup %s: %w", userID, err)
	}
	return g.CheckResourceAccess(ctx, Viewer{UserID: userID, Role: info.Role, FamilyID: info.FamilyID}, res)
}

// ============================================================================
// LIST-QUERY FILTER
// ============================================================================

// ResourceFilter is the declarative form of the gate's verdict for one
// viewer. It has two interpreters that share a single truth table: Match for
// in-process checks and SQL for compiled list queries. Every gate exception
// lives in this one value, so the single-item and list paths cannot drift
// apart.
type ResourceFilter struct {
	Viewer Viewer
}

// FilterFor builds the list filter for a viewer.
func (g *VisibilityGate) FilterFor(viewer Viewer) *ResourceFilter {
	return &ResourceFilter{Viewer: viewer}
}

// Match interprets the filter against one resource using the gate's grant
// stores. It is definitionally the gate verdict.
func (g *VisibilityGate) Match(ctx context.Context, f *ResourceFilter, res *Resource) (bool, error) {
	return g.CheckResourceAccess(ctx, f.Viewer, res)
}

// SQL compiles the filter to a named-parameter WHERE fragment over a
// resources table aliased by alias, with template_assignments and
// resource_shares consulted through EXISTS subqueries. The fragment is
// row-for-row equivalent to CheckResourceAccess:
//
//	admin OR creator
//	OR ( (not a MEMBER×system-generated row OR assigned)
//	     AND (PUBLIC OR family match OR share exists
//	          OR (MEMBER×system-generated AND assigned)) )
//
// The last disjunct mirrors step 3 of the gate: an assignment grants a MEMBER
// the system-generated resource regardless of its visibility tier.
func (f *ResourceFilter) SQL(alias string) (string, map[string]any) {
	a := alias
	if a != "" {
		a += "."
	}
	assigned := fmt.Sprintf(
		"EXISTS (SELECT 1 FROM template_assignments ta WHERE ta.resource_id = %sid AND ta.user_id = :viewer_id)", a)
	shared := fmt.Sprintf(
		"EXISTS (SELECT 1 FROM resource_shares rs WHERE rs.resource_id = %sid AND rs.user_id = :viewer_id)", a)

	clause := fmt.Sprintf(`(
  :viewer_role = 'ADMIN'
  OR (%[1]screated_by <> '' AND %[1]screated_by = :viewer_id)
  OR (
    (:viewer_role <> 'MEMBER' OR %[1]ssystem_generated = 0 OR %[2]s)
    AND (
      %[1]svisibility = 'PUBLIC'
      OR (%[1]svisibility = 'FAMILY' AND %[1]sfamily_id <> '' AND %[1]sfamily_id = :viewer_family_id)
      OR (%[1]svisibility = 'SHARED' AND %[3]s)
      OR (:viewer_role = 'MEMBER' AND %[1]ssystem_generated = 1 AND %[2]s)
    )
  )
)`, a, assigned, shared)

	params := map[string]any{
		"viewer_id":        f.Viewer.UserID,
		"viewer_role":      string(f.Viewer.Role),
		"viewer_family_id": f.Viewer.FamilyID,
	}
	return clause, params
}
