package auth

import (
	"fmt"
	"strings"
	"time"
)

// Role is the registry-wide access level attached to a profile.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleSecretary Role = "SECRETARY"
	RoleStaff     Role = "STAFF"
)

// ParseRole validates and normalizes a role string.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleSecretary:
		return RoleSecretary, nil
	case RoleStaff:
		return RoleStaff, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
	}
}

// Profile is the registry-side record for an identity. The id matches the
// identity account id one to one.
type Profile struct {
	ID         string    `json:"id"`
	FullName   string    `json:"full_name"`
	Role       Role      `json:"role"`
	Department string    `json:"department"`
	CreatedAt  time.Time `json:"created_at"`
}

// Account is the identity-provider record: credentials only, no registry
// metadata. Kept behind the IdentityService port so the two stores can
// diverge on partial provisioning failures.
type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Principal is the request-scoped resolved caller identity. It is built
// fresh per request from the profile store and threaded explicitly through
// registry and authorization calls.
type Principal struct {
	UserID     string
	FullName   string
	Role       Role
	Department string
}

// IsPrivileged reports whether the principal holds one of the two office
// roles with blanket visibility.
func (p Principal) IsPrivileged() bool {
	return p.Role == RoleAdmin || p.Role == RoleSecretary
}

// ProfileUpdate is a partial profile mutation. Nil fields are left untouched.
type ProfileUpdate struct {
	FullName   *string
	Role       *Role
	Department *string
}
