package authz

import (
	"fmt"
	"strings"

	phlog "github.com/oarkflow/log"
)

// ============================================================================
// CONDITION TREE
// ============================================================================

// Condition is a finite, acyclic boolean expression over AccessContext facts.
// Trees are always built in code or from trusted configuration, never
// deserialized from untrusted input, so acyclicity holds by construction.
type Condition interface {
	Evaluate(actx *AccessContext) bool
	String() string
}

// Fact names a leaf predicate over the context.
type Fact string

const (
	FactIsAdmin          Fact = "isAdmin"
	FactIsOwner          Fact = "isOwner"
	FactIsFamilyMember   Fact = "isFamilyMember"
	FactIsFamilyAdmin    Fact = "isFamilyAdmin"
	FactIsPublic         Fact = "isPublic"
	FactIsSystemResource Fact = "isSystemResource"
)

// FactExpr evaluates a single named fact against the context.
type FactExpr struct {
	Fact Fact
}

func (e *FactExpr) Evaluate(actx *AccessContext) bool {
	switch e.Fact {
	case FactIsAdmin:
		return actx.Role == RoleAdmin
	case FactIsOwner:
		return actx.ResourceOwnerID != "" && actx.UserID == actx.ResourceOwnerID
	case FactIsFamilyMember:
		return actx.FamilyID != "" && actx.FamilyID == actx.ResourceFamilyID
	case FactIsFamilyAdmin:
		// Membership is deliberately not implied here; rule tables AND this
		// with isFamilyMember where the resource must belong to the same
		// family. Evaluated alone it holds for a family admin of any family.
		return actx.FamilyRole == FamilyRoleAdmin || actx.FamilyRole == FamilyRolePrimaryContact
	case FactIsPublic:
		return actx.ResourcePublic
	case FactIsSystemResource:
		return actx.ResourceFamilyID == ""
	}
	// An unknown fact almost always means a newer rule table met an older
	// evaluator. Fail closed.
	phlog.Warn().Str("fact", string(e.Fact)).Msg("unknown condition fact; evaluating as false")
	return false
}

func (e *FactExpr) String() string {
	return string(e.Fact)
}

// AndExpr holds when every child holds. An empty AND is vacuously true.
type AndExpr struct {
	Conds []Condition
}

func (e *AndExpr) Evaluate(actx *AccessContext) bool {
	for _, c := range e.Conds {
		if !c.Evaluate(actx) {
			return false
		}
	}
	return true
}

func (e *AndExpr) String() string {
	return combString("and", e.Conds)
}

// OrExpr holds when any child holds. An empty OR is false.
type OrExpr struct {
	Conds []Condition
}

func (e *OrExpr) Evaluate(actx *AccessContext) bool {
	for _, c := range e.Conds {
		if c.Evaluate(actx) {
			return true
		}
	}
	return false
}

func (e *OrExpr) String() string {
	return combString("or", e.Conds)
}

// NotExpr negates its child.
type NotExpr struct {
	Cond Condition
}

func (e *NotExpr) Evaluate(actx *AccessContext) bool {
	return !e.Cond.Evaluate(actx)
}

func (e *NotExpr) String() string {
	return fmt.Sprintf("(not %s)", e.Cond.String())
}

func combString(op string, conds []Condition) string {
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = c.String()
	}
	return fmt.Sprintf("(%s)", strings.Join(parts, " "+op+" "))
}

// Leaf and combinator constructors. Rule tables read best built from these.

func IsAdmin() Condition          { return &FactExpr{Fact: FactIsAdmin} }
func IsOwner() Condition          { return &FactExpr{Fact: FactIsOwner} }
func IsFamilyMember() Condition   { return &FactExpr{Fact: FactIsFamilyMember} }
func IsFamilyAdmin() Condition    { return &FactExpr{Fact: FactIsFamilyAdmin} }
func IsPublic() Condition         { return &FactExpr{Fact: FactIsPublic} }
func IsSystemResource() Condition { return &FactExpr{Fact: FactIsSystemResource} }

func And(conds ...Condition) Condition { return &AndExpr{Conds: conds} }
func Or(conds ...Condition) Condition  { return &OrExpr{Conds: conds} }
func Not(c Condition) Condition        { return &NotExpr{Cond: c} }

// knownFacts is the closed leaf vocabulary.
var knownFacts = map[Fact]bool{
	FactIsAdmin:          true,
	FactIsOwner:          true,
	FactIsFamilyMember:   true,
	FactIsFamilyAdmin:    true,
	FactIsPublic:         true,
	FactIsSystemResource: true,
}

// unknownFacts walks a condition tree and collects leaves outside the closed
// vocabulary so registration can warn about them up front.
func unknownFacts(c Condition) []Fact {
	switch v := c.(type) {
	case nil:
		return nil
	case *FactExpr:
		if !knownFacts[v.Fact] {
			return []Fact{v.Fact}
		}
		return nil
	case *AndExpr:
		var out []Fact
		for _, child := range v.Conds {
			out = append(out, unknownFacts(child)...)
		}
		return out
	case *OrExpr:
		var out []Fact
		for _, child := range v.Conds {
			out = append(out, unknownFacts(child)...)
		}
		return out
	case *NotExpr:
		return unknownFacts(v.Cond)
	}
	return nil
}
