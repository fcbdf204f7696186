// Package access holds the authorization predicates gating letter
// visibility, edits and user management. Predicates are pure functions over
// the resolved principal and the target letter; grant lookups happen in the
// caller so the predicate stays side-effect free.
package access

import (
	"docket.org/internal/auth"
	"docket.org/internal/registry"
)

// Policy implements registry.Authorizer.
type Policy struct{}

var _ registry.Authorizer = Policy{}

// CanView reports whether the actor may see the letter.
//
// PUBLIC: any authenticated actor. INTERNAL: department match or a
// privileged role. CONFIDENTIAL: privileged role or an explicit recipient
// grant.
func (Policy) CanView(actor auth.Principal, l registry.Letter, hasGrant bool) bool {
	switch l.Confidentiality {
	case registry.ConfidentialityPublic:
		return true
	case registry.ConfidentialityInternal:
		return actor.IsPrivileged() || (l.RecipientDepartment != "" && actor.Department == l.RecipientDepartment)
	case registry.ConfidentialityConfidential:
		return actor.IsPrivileged() || hasGrant
	default:
		return false
	}
}

// CanEdit reports whether the actor may mutate letters. STAFF never edits,
// regardless of visibility.
func (Policy) CanEdit(actor auth.Principal) bool {
	return actor.IsPrivileged()
}

// CanManageUsers reports whether the actor may provision or delete users.
func CanManageUsers(actor auth.Principal) bool {
	return actor.Role == auth.RoleAdmin
}
