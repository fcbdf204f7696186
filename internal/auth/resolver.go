package auth

import (
	"context"
	"errors"
	"fmt"
)

// Resolver turns a session token into a request-scoped principal. The role
// is loaded fresh from the profile store on every call; tokens never carry
// authorization state.
type Resolver struct {
	profiles ProfileStore
}

// NewResolver constructs a Resolver.
func NewResolver(profiles ProfileStore) (*Resolver, error) {
	if profiles == nil {
		return nil, errors.New("profile store is required")
	}
	return &Resolver{profiles: profiles}, nil
}

// Resolve validates the token and loads the caller's profile. An
// authenticated identity without a profile row yields ErrProfileMissing.
func (r *Resolver) Resolve(ctx context.Context, token string) (Principal, error) {
	claims, err := ParseAndValidate(token)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	profile, err := r.profiles.Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, fmt.Errorf("%w: %s", ErrProfileMissing, claims.Subject)
		}
		return Principal{}, err
	}
	return Principal{
		UserID:     profile.ID,
		FullName:   profile.FullName,
		Role:       profile.Role,
		Department: profile.Department,
	}, nil
}
