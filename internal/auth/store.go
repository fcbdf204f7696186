package auth

import "context"

// ProfileStore persists registry profiles.
type ProfileStore interface {
	Create(ctx context.Context, p *Profile) error
	Find(ctx context.Context, id string) (Profile, error)
	Update(ctx context.Context, id string, upd ProfileUpdate) (Profile, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, query string, limit int) ([]Profile, error)
}

// IdentityService is the port to the identity provider: credentials and
// account lifecycle only. No shared transaction exists between this store
// and ProfileStore; callers compensate on partial failure.
type IdentityService interface {
	CreateAccount(ctx context.Context, email, passwordHash string) (Account, error)
	FindAccount(ctx context.Context, id string) (Account, error)
	FindAccountByEmail(ctx context.Context, email string) (Account, string, error)
	UpdateAccountEmail(ctx context.Context, id, email string) error
	DeleteAccount(ctx context.Context, id string) error
}
