package registry

import (
	"context"

	"docket.org/internal/auth"
)

// LetterStore persists letter records. Insert must enforce ref_no
// uniqueness and report a violation as ErrConflict.
type LetterStore interface {
	Insert(ctx context.Context, l *Letter) error
	Find(ctx context.Context, id string) (Letter, error)
	Update(ctx context.Context, id string, patch Patch) (Letter, error)
	UpdateFile(ctx context.Context, id string, f FileRef) (Letter, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f Filter) ([]Letter, error)
	RefNosWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// RecipientStore persists the explicit per-user grants for CONFIDENTIAL
// letters. A (letter, user) row is the sole grant for STAFF viewers.
type RecipientStore interface {
	Add(ctx context.Context, letterID string, userIDs []string) error
	Remove(ctx context.Context, letterID, userID string) error
	Clear(ctx context.Context, letterID string) error
	List(ctx context.Context, letterID string) ([]string, error)
	IsRecipient(ctx context.Context, letterID, userID string) (bool, error)
	LetterIDsForUser(ctx context.Context, userID string) (map[string]struct{}, error)
}

// Authorizer decides per-letter visibility and edit rights. Implemented by
// the access package; declared here so the registry carries no dependency
// on it.
type Authorizer interface {
	CanView(actor auth.Principal, l Letter, hasGrant bool) bool
	CanEdit(actor auth.Principal) bool
}
