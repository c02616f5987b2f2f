package authz

// Resource types known to the default deployment.
const (
	ResourceTypeMessage      = "message"
	ResourceTypeFamily       = "family"
	ResourceTypeUser         = "user"
	ResourceTypeNotification = "notification"
	ResourceTypeCarePlan     = "care_plan"
	ResourceTypeActivity     = "activity"
)

// DefaultRegistry returns the stock rule tables. Each resource type gets its
// own table; WRITE-level family rules AND isFamilyAdmin with isFamilyMember
// so that an admin of family F1 cannot write into family F2.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	NewRuleSetBuilder(ResourceTypeMessage).
		Rule(IsAdmin(), LevelAdmin, "platform admins have full control").
		Rule(IsOwner(), LevelDelete, "authors manage their own messages").
		Rule(And(IsFamilyMember(), IsFamilyAdmin()), LevelWrite, "family admins moderate family messages").
		Rule(IsFamilyMember(), LevelRead, "family members read family messages").
		Rule(IsPublic(), LevelRead, "anyone reads public messages").
		RegisterOn(r)

	NewRuleSetBuilder(ResourceTypeFamily).
		Rule(IsAdmin(), LevelAdmin, "platform admins have full control").
		Rule(And(IsFamilyMember(), IsFamilyAdmin()), LevelWrite, "family admins manage their family").
		Rule(IsFamilyMember(), LevelRead, "family members view their family").
		RegisterOn(r)

	NewRuleSetBuilder(ResourceTypeUser).
		Rule(IsAdmin(), LevelAdmin, "platform admins have full control").
		Rule(IsOwner(), LevelWrite, "users edit their own profile").
		Rule(IsFamilyMember(), LevelRead, "family members view each other").
		RegisterOn(r)

	NewRuleSetBuilder(ResourceTypeNotification).
		Rule(IsAdmin(), LevelAdmin, "platform admins have full control").
		Rule(IsOwner(), LevelDelete, "recipients dismiss their own notifications").
		RegisterOn(r)

	NewRuleSetBuilder(ResourceTypeCarePlan).
		Rule(IsAdmin(), LevelAdmin, "platform admins have full control").
		Rule(IsOwner(), LevelDelete, "plan authors manage their plans").
		Rule(And(IsFamilyMember(), IsFamilyAdmin()), LevelDelete, "family admins manage family care plans").
		Rule(IsFamilyMember(), LevelRead, "family members follow the plan").
		RegisterOn(r)

	NewRuleSetBuilder(ResourceTypeActivity).
		Rule(IsAdmin(), LevelAdmin, "platform admins have full control").
		Rule(IsOwner(), LevelDelete, "organizers manage their activities").
		Rule(And(IsFamilyMember(), IsFamilyAdmin()), LevelWrite, "family admins schedule activities").
		Rule(IsFamilyMember(), LevelRead, "family members view activities").
		Rule(IsPublic(), LevelRead, "anyone reads public activities").
		RegisterOn(r)

	return r
}
