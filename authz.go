package authz

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/carebridge/authz/logger"

	phlog "github.com/oarkflow/log"
)

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// Role is the global platform role of an authenticated user.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleVolunteer Role = "VOLUNTEER"
	RoleMember    Role = "MEMBER"
)

// FamilyRole is a user's role inside their own family group.
type FamilyRole string

const (
	FamilyRolePrimaryContact FamilyRole = "PRIMARY_CONTACT"
	FamilyRoleAdmin          FamilyRole = "FAMILY_ADMIN"
	FamilyRoleMember         FamilyRole = "MEMBER"
)

// Visibility is the sharing tier of a concrete resource instance. It is
// independent of the role-based rule tables.
type Visibility string

const (
	VisibilityPrivate Visibility = "PRIVATE"
	VisibilityFamily  Visibility = "FAMILY"
	VisibilityShared  Visibility = "SHARED"
	VisibilityPublic  Visibility = "PUBLIC"
)

// AccessLevel is an ordinal permission tier. Sufficiency is plain ordinal
// comparison, so it is reflexive and transitive by construction.
type AccessLevel uint8

const (
	LevelNone AccessLevel = iota
	LevelRead
	LevelWrite
	LevelDelete
	LevelAdmin
)

func (l AccessLevel) String() string {
	switch l {
	case LevelNone:
		return "NONE"
	case LevelRead:
		return "READ"
	case LevelWrite:
		return "WRITE"
	case LevelDelete:
		return "DELETE"
	case LevelAdmin:
		return "ADMIN"
	}
	return fmt.Sprintf("AccessLevel(%d)", uint8(l))
}

// ParseAccessLevel converts a config-file level name into an AccessLevel.
func ParseAccessLevel(s string) (AccessLevel, error) {
	switch s {
	case "NONE":
		return LevelNone, nil
	case "READ":
		return LevelRead, nil
	case "WRITE":
		return LevelWrite, nil
	case "DELETE":
		return LevelDelete, nil
	case "ADMIN":
		return LevelAdmin, nil
	}
	return LevelNone, fmt.Errorf("unknown access level %q", s)
}

// Satisfies reports whether holding level l is enough for the required level.
func (l AccessLevel) Satisfies(required AccessLevel) bool {
	return l >= required
}

// Operation is a CRUD verb performed against a resource type.
type Operation string

const (
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// RequiredLevel maps an operation to the access level it needs. The mapping
// is total over the closed operation set; anything else is an error so an
// unknown verb can never fall through to a silent allow.
func (op Operation) RequiredLevel() (AccessLevel, error) {
	switch op {
	case OpCreate, OpUpdate:
		return LevelWrite, nil
	case OpDelete:
		return LevelDelete, nil
	case OpRead:
		return LevelRead, nil
	}
	return LevelNone, fmt.Errorf("unknown operation %q", op)
}

// AccessContext is the fact bundle one decision is computed from. It is built
// fresh per call from the authenticated user and the fetched resource fields,
// and is never persisted.
type AccessContext struct {
	UserID           string     `json:"user_id"`
	Role             Role       `json:"role"`
	FamilyID         string     `json:"family_id,omitempty"`
	FamilyRole       FamilyRole `json:"family_role,omitempty"`
	ResourceOwnerID  string     `json:"resource_owner_id,omitempty"`
	ResourceFamilyID string     `json:"resource_family_id,omitempty"`
	ResourcePublic   bool       `json:"resource_public,omitempty"`
}

// AccessRule pairs a condition with the level it grants when the condition
// holds. Rules within a set are not mutually exclusive; order is preserved
// for diagnostics only and never changes the outcome.
type AccessRule struct {
	Condition   Condition
	Level       AccessLevel
	Description string
}

// Resource is the visibility gate's view of a concrete resource instance.
// The surrounding application owns these rows; the gate only reads them.
type Resource struct {
	ID              string     `json:"id"`
	CreatedBy       string     `json:"created_by"`
	FamilyID        string     `json:"family_id,omitempty"`
	Visibility      Visibility `json:"visibility"`
	SystemGenerated bool       `json:"system_generated"`
	Status          string     `json:"status,omitempty"`
}

// Viewer identifies who is looking at resources.
type Viewer struct {
	UserID   string `json:"user_id"`
	Role     Role   `json:"role"`
	FamilyID string `json:"family_id,omitempty"`
}

// ============================================================================
// EXTERNAL COLLABORATOR INTERFACES
// ============================================================================

// UserInfo is what the user directory hands back for context construction.
type UserInfo struct {
	Role       Role       `json:"role"`
	FamilyID   string     `json:"family_id,omitempty"`
	FamilyRole FamilyRole `json:"family_role,omitempty"`
}

// UserDirectory resolves an authenticated user ID to their roles.
type UserDirectory interface {
	Lookup(ctx context.Context, userID string) (*UserInfo, error)
}

// AssignmentStore answers whether a template assignment row exists. An
// assignment is the explicit grant letting one MEMBER read one
// system-generated resource.
type AssignmentStore interface {
	Exists(ctx context.Context, resourceID, userID string) (bool, error)
}

// ShareStore answers whether a resource has been shared with a user.
// Shares only matter for resources with VisibilityShared.
type ShareStore interface {
	Exists(ctx context.Context, resourceID, userID string) (bool, error)
}

// ResourceStore fetches resources. ListVisible must be equivalent to calling
// the visibility gate row by row; SQL implementations compile the gate's
// ResourceFilter instead of looping.
type ResourceStore interface {
	Get(ctx context.Context, id string) (*Resource, error)
	ListVisible(ctx context.Context, viewer Viewer) ([]*Resource, error)
}

// ============================================================================
// RULE SET REGISTRY
// ============================================================================

// Registry maps resource types to their ordered rule tables. It is built once
// at startup and read for the life of the process. Register is not safe to
// call concurrently with in-flight reads; mutation is restricted to
// configuration time rather than guarded by a lock.
type Registry struct {
	tables map[string][]AccessRule
}

func NewRegistry() *Registry {
	return &Registry{tables: make(map[string][]AccessRule)}
}

// Register installs the rule table for a resource type, replacing any table
// previously registered under the same type. Configuration time only.
func (r *Registry) Register(resourceType string, rules []AccessRule) {
	for _, rule := range rules {
		for _, f := range unknownFacts(rule.Condition) {
			phlog.Warn().
				Str("resource_type", resourceType).
				Str("fact", string(f)).
				Str("rule", rule.Description).
				Msg("rule condition references unknown fact; it will never match")
		}
	}
	r.tables[resourceType] = rules
}

// Rules returns the rule table for a resource type, or nil when the type is
// unregistered. Unregistered types always decide to LevelNone.
func (r *Registry) Rules(resourceType string) []AccessRule {
	return r.tables[resourceType]
}

// Types returns the registered resource types in sorted order.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.tables))
	for t := range r.tables {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ============================================================================
// DECISION ENGINE
// ============================================================================

// AccessDetails is the side-effect-free diagnostic view of a decision, used
// for UI hints and the explain API.
type AccessDetails struct {
	ResourceType string      `json:"resource_type"`
	Level        AccessLevel `json:"level"`
	MatchedRules []string    `json:"matched_rules"`
	CanRead      bool        `json:"can_read"`
	CanWrite     bool        `json:"can_write"`
	CanDelete    bool        `json:"can_delete"`
	CanAdmin     bool        `json:"can_admin"`
}

// Engine computes role-based access levels from a rule registry. All
// evaluation is pure and synchronous; the only shared state is the registry,
// which is read-only after startup.
type Engine struct {
	registry    *Registry
	logger      logger.Logger
	traceIDFunc logger.TraceIDFunc
	auditStore  AuditStore
	auditCh     chan AuditEntry
	auditBuffer int
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine) error

// WithLogger installs a structured logger on the engine.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) error {
		e.logger = l
		return nil
	}
}

// WithTraceIDFunc installs a correlation ID generator used on audit entries.
func WithTraceIDFunc(f logger.TraceIDFunc) EngineOption {
	return func(e *Engine) error {
		e.traceIDFunc = f
		return nil
	}
}

// WithAuditStore installs a sink for decision audit entries. Entries are
// delivered asynchronously; a full buffer drops entries rather than blocking
// the decision path.
func WithAuditStore(s AuditStore) EngineOption {
	return func(e *Engine) error {
		e.auditStore = s
		return nil
	}
}

// WithAuditBuffer sets the audit channel capacity.
func WithAuditBuffer(n int) EngineOption {
	return func(e *Engine) error {
		if n <= 0 {
			return fmt.Errorf("audit buffer must be positive, got %d", n)
		}
		e.auditBuffer = n
		return nil
	}
}

func NewEngine(registry *Registry, opts ...EngineOption) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("engine requires a registry")
	}
	e := &Engine{
		registry:    registry,
		logger:      logger.NewNullLogger(),
		auditBuffer: 1024,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.auditStore != nil {
		e.auditCh = make(chan AuditEntry, e.auditBuffer)
		go func() {
			bg := context.Background()
			for entry := range e.auditCh {
				if err := e.auditStore.LogDecision(bg, &entry); err != nil {
					e.logger.Error("audit write failed", "error", err.Error())
				}
			}
		}()
	}
	return e, nil
}

// Close stops the audit worker. Pending buffered entries are still drained.
func (e *Engine) Close() {
	if e.auditCh != nil {
		close(e.auditCh)
		e.auditCh = nil
	}
}

// GetAccessLevel returns the maximum level over every rule whose condition
// the context satisfies, or LevelNone when the type is unregistered or
// nothing matches. It always scans the whole table: a context can satisfy an
// owner rule and a weaker membership rule at once, and the highest wins.
func (e *Engine) GetAccessLevel(actx *AccessContext, resourceType string) AccessLevel {
	level := LevelNone
	for _, rule := range e.registry.Rules(resourceType) {
		if rule.Condition == nil {
			continue
		}
		if rule.Condition.Evaluate(actx) && rule.Level > level {
			level = rule.Level
		}
	}
	return level
}

// HasAccess reports whether the context's level for the type satisfies the
// required level.
func (e *Engine) HasAccess(actx *AccessContext, resourceType string, required AccessLevel) bool {
	return e.GetAccessLevel(actx, resourceType).Satisfies(required)
}

// CanPerform maps the operation to its required level and checks sufficiency.
// Unknown operations deny.
func (e *Engine) CanPerform(actx *AccessContext, resourceType string, op Operation) bool {
	required, err := op.RequiredLevel()
	if err != nil {
		e.logger.Error("operation mapping failed", "operation", string(op), "error", err.Error())
		return false
	}
	return e.HasAccess(actx, resourceType, required)
}

// Authorize is the decorator entry point: it performs CanPerform, records the
// decision, and returns ErrAccessDenied on refusal. The error is surfaced
// verbatim, never downgraded.
func (e *Engine) Authorize(ctx context.Context, actx *AccessContext, resourceType string, op Operation) error {
	level := LevelNone
	allowed := false
	reason := "no matching rule"
	required, err := op.RequiredLevel()
	if err != nil {
		reason = err.Error()
	} else {
		level = e.GetAccessLevel(actx, resourceType)
		allowed = level.Satisfies(required)
		if allowed {
			reason = fmt.Sprintf("level %s satisfies %s", level, required)
		} else {
			reason = fmt.Sprintf("level %s below required %s", level, required)
		}
	}
	e.audit(actx, resourceType, op, level, allowed, reason)
	if !allowed {
		return fmt.Errorf("%s %s on %s for user %s: %w", op, reason, resourceType, actx.UserID, ErrAccessDenied)
	}
	return nil
}

// AccessDetails evaluates every rule for the type and reports the outcome
// without side effects.
func (e *Engine) AccessDetails(actx *AccessContext, resourceType string) *AccessDetails {
	level := LevelNone
	matched := make([]string, 0)
	for _, rule := range e.registry.Rules(resourceType) {
		if rule.Condition == nil || !rule.Condition.Evaluate(actx) {
			continue
		}
		desc := rule.Description
		if desc == "" {
			desc = rule.Condition.String()
		}
		matched = append(matched, fmt.Sprintf("%s -> %s", desc, rule.Level))
		if rule.Level > level {
			level = rule.Level
		}
	}
	return &AccessDetails{
		ResourceType: resourceType,
		Level:        level,
		MatchedRules: matched,
		CanRead:      level.Satisfies(LevelRead),
		CanWrite:     level.Satisfies(LevelWrite),
		CanDelete:    level.Satisfies(LevelDelete),
		CanAdmin:     level.Satisfies(LevelAdmin),
	}
}

func (e *Engine) audit(actx *AccessContext, resourceType string, op Operation, level AccessLevel, allowed bool, reason string) {
	traceID := ""
	if e.traceIDFunc != nil {
		traceID = e.traceIDFunc()
	}

	phlog.Info().
		Str("trace_id", traceID).
		Str("user", actx.UserID).
		Str("role", string(actx.Role)).
		Str("resource_type", resourceType).
		Str("operation", string(op)).
		Str("level", level.String()).
		Bool("allowed", allowed).
		Str("reason", reason).
		Msg("access decision")

	if e.auditCh == nil {
		return
	}
	entry := AuditEntry{
		ID:           fmt.Sprintf("%d", time.Now().UnixNano()),
		Timestamp:    time.Now(),
		TraceID:      traceID,
		UserID:       actx.UserID,
		Role:         actx.Role,
		ResourceType: resourceType,
		Operation:    op,
		Level:        level,
		Allowed:      allowed,
		Reason:       reason,
	}
	select {
	case e.auditCh <- entry:
	default:
		// drop rather than block the decision path
	}
}

// ============================================================================
// AUDIT
// ============================================================================

// AuditEntry is the diagnostic record of one access decision.
type AuditEntry struct {
	ID           string      `json:"id"`
	Timestamp    time.Time   `json:"timestamp"`
	TraceID      string      `json:"trace_id,omitempty"`
	UserID       string      `json:"user_id"`
	Role         Role        `json:"role"`
	ResourceType string      `json:"resource_type"`
	Operation    Operation   `json:"operation"`
	Level        AccessLevel `json:"level"`
	Allowed      bool        `json:"allowed"`
	Reason       string      `json:"reason"`
}

// AuditFilter selects decision log entries.
type AuditFilter struct {
	UserID       string
	ResourceType string
	StartTime    time.Time
	EndTime      time.Time
	Limit        int
}

// AuditStore persists decision audit entries. Where the entries end up is the
// surrounding application's concern; only the data shape is defined here.
type AuditStore interface {
	LogDecision(ctx context.Context, entry *AuditEntry) error
	GetDecisionLog(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
}
