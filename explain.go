package authz

import "context"

// ExplainRequest is a flat what-if request used by admin tooling and the CLI.
type ExplainRequest struct {
	UserID           string `json:"user_id"`
	Role             string `json:"role"`
	FamilyID         string `json:"family_id,omitempty"`
	FamilyRole       string `json:"family_role,omitempty"`
	ResourceType     string `json:"resource_type"`
	ResourceOwnerID  string `json:"resource_owner_id,omitempty"`
	ResourceFamilyID string `json:"resource_family_id,omitempty"`
	ResourcePublic   bool   `json:"resource_public,omitempty"`
	Operation        string `json:"operation,omitempty"`
}

// ExplainResult pairs the diagnostic details with the verdict for the
// requested operation, when one was given.
type ExplainResult struct {
	Details   *AccessDetails `json:"details"`
	Operation Operation      `json:"operation,omitempty"`
	Allowed   *bool          `json:"allowed,omitempty"`
}

// ExplainRequest evaluates a what-if decision without side effects beyond the
// usual decision audit.
func (e *Engine) ExplainRequest(ctx context.Context, req *ExplainRequest) *ExplainResult {
	actx := &AccessContext{
		UserID:           req.UserID,
		Role:             Role(req.Role),
		FamilyID:         req.FamilyID,
		FamilyRole:       FamilyRole(req.FamilyRole),
		ResourceOwnerID:  req.ResourceOwnerID,
		ResourceFamilyID: req.ResourceFamilyID,
		ResourcePublic:   req.ResourcePublic,
	}
	result := &ExplainResult{Details: e.AccessDetails(actx, req.ResourceType)}
	if req.Operation != "" {
		op := Operation(req.Operation)
		allowed := e.Authorize(ctx, actx, req.ResourceType, op) == nil
		result.Operation = op
		result.Allowed = &allowed
	}
	return result
}
