// Package policy is the single authorization decision point. Handlers
// never compare role strings themselves; every ownership or role check
// goes through CanAccess or IsAdmin.
package policy

import "taskvault/internal/models"

// Action classifies what the caller wants to do with a resource.
type Action int

const (
	ActionRead Action = iota
	ActionWrite
	ActionDelete
)

// CanAccess decides whether p may perform action on a resource owned by
// ownerID. Admins may do anything; everyone else only touches their own
// resources. All three action classes currently share the ownership rule.
func CanAccess(p models.Principal, ownerID string, action Action) bool {
	if IsAdmin(p) {
		return true
	}
	return p.ID != "" && p.ID == ownerID
}

// IsAdmin reports whether p holds the admin role.
func IsAdmin(p models.Principal) bool {
	return p.Role == models.RoleAdmin
}
