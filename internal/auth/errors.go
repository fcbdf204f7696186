package auth

import "errors"

var (
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	ErrInvalidToken    = errors.New("auth: invalid token")
	ErrForbidden       = errors.New("auth: forbidden")
	ErrNotFound        = errors.New("auth: not found")
	ErrConflict        = errors.New("auth: resource conflict")
	ErrInvalidInput    = errors.New("auth: invalid input")

	// ErrProfileMissing signals an authenticated identity with no profile row.
	// Distinct from both ErrUnauthenticated and ErrForbidden so provisioning
	// flows can surface it instead of silently granting a default role.
	ErrProfileMissing = errors.New("auth: profile missing for identity")

	// ErrPartialProvision and ErrPartialDelete mark the documented
	// non-atomic gaps between the identity store and the profile store.
	// Operators reconcile these manually.
	ErrPartialProvision = errors.New("auth: identity created but profile provisioning failed")
	ErrPartialDelete    = errors.New("auth: profile removed but identity deletion failed")
)
