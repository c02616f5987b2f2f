package authz

// Builders provide a fluent API for assembling access contexts and rule sets.

// ContextBuilder builds an AccessContext from user and resource facts.
type AccessContextBuilder struct {
	c *AccessContext
}

func NewAccessContextBuilder() *AccessContextBuilder {
	return &AccessContextBuilder{c: &AccessContext{}}
}

func (b *AccessContextBuilder) User(id string, role Role) *AccessContextBuilder {
	b.c.UserID = id
	b.c.Role = role
	return b
}

func (b *AccessContextBuilder) Family(id string, role FamilyRole) *AccessContextBuilder {
	b.c.FamilyID = id
	b.c.FamilyRole = role
	return b
}

// ForResource embeds the fields of a fetched resource into the context.
func (b *AccessContextBuilder) ForResource(res *Resource) *AccessContextBuilder {
	if res == nil {
		return b
	}
	b.c.ResourceOwnerID = res.CreatedBy
	b.c.ResourceFamilyID = res.FamilyID
	b.c.ResourcePublic = res.Visibility == VisibilityPublic
	return b
}

func (b *AccessContextBuilder) ResourceOwner(ownerID string) *AccessContextBuilder {
	b.c.ResourceOwnerID = ownerID
	return b
}

func (b *AccessContextBuilder) ResourceFamily(familyID string) *AccessContextBuilder {
	b.c.ResourceFamilyID = familyID
	return b
}

func (b *AccessContextBuilder) PublicResource(public bool) *AccessContextBuilder {
	b.c.ResourcePublic = public
	return b
}

func (b *AccessContextBuilder) Build() *AccessContext { return b.c }

// RuleSetBuilder builds an ordered rule table for one resource type.
type RuleSetBuilder struct {
	resourceType string
	rules        []AccessRule
}

func NewRuleSetBuilder(resourceType string) *RuleSetBuilder {
	return &RuleSetBuilder{resourceType: resourceType, rules: make([]AccessRule, 0, 8)}
}

func (b *RuleSetBuilder) Rule(cond Condition, level AccessLevel, description string) *RuleSetBuilder {
	b.rules = append(b.rules, AccessRule{Condition: cond, Level: level, Description: description})
	return b
}

func (b *RuleSetBuilder) Build() []AccessRule { return b.rules }

// RegisterOn installs the built table on a registry. Configuration time only.
func (b *RuleSetBuilder) RegisterOn(r *Registry) {
	r.Register(b.resourceType, b.rules)
}
