package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docket.org/internal/audit"
)

const defaultSessionTTL = 15 * time.Minute

// Service implements login and ADMIN-only user provisioning over the
// identity and profile stores. The two stores share no transaction; the
// partial-failure paths are compensated where possible and surfaced as
// distinct errors where not.
type Service struct {
	identity   IdentityService
	profiles   ProfileStore
	recorder   *audit.Recorder
	sessionTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithSessionTTL overrides the issued session token lifetime.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// NewService constructs the provisioning service.
func NewService(identity IdentityService, profiles ProfileStore, recorder *audit.Recorder, opts ...ServiceOption) (*Service, error) {
	if identity == nil {
		return nil, errors.New("identity service is required")
	}
	if profiles == nil {
		return nil, errors.New("profile store is required")
	}
	if recorder == nil {
		return nil, errors.New("audit recorder is required")
	}
	svc := &Service{
		identity:   identity,
		profiles:   profiles,
		recorder:   recorder,
		sessionTTL: defaultSessionTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Session is an issued token with its expiry.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login authenticates credentials against the identity store and issues a
// session token. Credential failures are indistinguishable on purpose.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Session{}, ErrUnauthenticated
	}
	account, hash, err := s.identity.FindAccountByEmail(ctx, email)
	if err != nil {
		return Session{}, ErrUnauthenticated
	}
	if err := VerifyPassword(hash, password); err != nil {
		return Session{}, ErrUnauthenticated
	}
	token, err := GenerateToken(account.ID, s.sessionTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: time.Now().UTC().Add(s.sessionTTL)}, nil
}

// CreateUserInput carries the fields for provisioning a new user.
type CreateUserInput struct {
	Email      string
	Password   string
	Role       string
	Department string
	FullName   string
}

// CreateUser provisions an identity account and its matching profile.
// If the profile insert fails after the account exists, the account is left
// behind and the caller receives ErrPartialProvision for manual reconciliation.
func (s *Service) CreateUser(ctx context.Context, actor Principal, in CreateUserInput) (Profile, error) {
	if actor.Role != RoleAdmin {
		return Profile{}, ErrForbidden
	}
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return Profile{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLength {
		return Profile{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	role, err := ParseRole(in.Role)
	if err != nil {
		return Profile{}, err
	}
	fullName := strings.TrimSpace(in.FullName)
	if fullName == "" {
		return Profile{}, fmt.Errorf("%w: full_name is required", ErrInvalidInput)
	}
	department := strings.TrimSpace(in.Department)

	hash, err := HashPassword(in.Password)
	if err != nil {
		return Profile{}, err
	}
	account, err := s.identity.CreateAccount(ctx, email, hash)
	if err != nil {
		return Profile{}, err
	}

	profile := Profile{
		ID:         account.ID,
		FullName:   fullName,
		Role:       role,
		Department: department,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.profiles.Create(ctx, &profile); err != nil {
		return Profile{}, fmt.Errorf("%w: account %s: %v", ErrPartialProvision, account.ID, err)
	}

	s.recorder.Record(ctx, actor.UserID, audit.ActionUserCreated, "", map[string]any{
		"target_user": account.ID,
		"email":       email,
		"role":        string(role),
	})
	return profile, nil
}

// DeleteUser removes the profile then the identity account. Self-deletion is
// always refused. A failed account delete after the profile is gone is
// surfaced as ErrPartialDelete.
func (s *Service) DeleteUser(ctx context.Context, actor Principal, userID string) error {
	if actor.Role != RoleAdmin {
		return ErrForbidden
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if userID == actor.UserID {
		return fmt.Errorf("%w: cannot delete own account", ErrConflict)
	}
	if err := s.profiles.Delete(ctx, userID); err != nil {
		return err
	}
	if err := s.identity.DeleteAccount(ctx, userID); err != nil {
		return fmt.Errorf("%w: account %s: %v", ErrPartialDelete, userID, err)
	}
	s.recorder.Record(ctx, actor.UserID, audit.ActionUserDeleted, "", map[string]any{
		"target_user": userID,
	})
	return nil
}

// SetRole updates profile role, department and full name. Identity fields
// are untouched.
func (s *Service) SetRole(ctx context.Context, actor Principal, userID, role, department, fullName string) (Profile, error) {
	if actor.Role != RoleAdmin {
		return Profile{}, ErrForbidden
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Profile{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	parsed, err := ParseRole(role)
	if err != nil {
		return Profile{}, err
	}
	upd := ProfileUpdate{Role: &parsed}
	if trimmed := strings.TrimSpace(department); trimmed != "" {
		upd.Department = &trimmed
	}
	if trimmed := strings.TrimSpace(fullName); trimmed != "" {
		upd.FullName = &trimmed
	}
	profile, err := s.profiles.Update(ctx, userID, upd)
	if err != nil {
		return Profile{}, err
	}
	s.recorder.Record(ctx, actor.UserID, audit.ActionRoleUpdated, "", map[string]any{
		"target_user": userID,
		"role":        string(parsed),
	})
	return profile, nil
}

// UpdateEmail changes the identity account email for a user.
func (s *Service) UpdateEmail(ctx context.Context, actor Principal, userID, email string) error {
	if actor.Role != RoleAdmin {
		return ErrForbidden
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if err := s.identity.UpdateAccountEmail(ctx, userID, email); err != nil {
		return err
	}
	s.recorder.Record(ctx, actor.UserID, audit.ActionUserEmailUpdated, "", map[string]any{
		"target_user": userID,
		"email":       email,
	})
	return nil
}

// SearchProfiles performs a typeahead search by name or department for
// privileged callers. Queries shorter than two characters are rejected.
func (s *Service) SearchProfiles(ctx context.Context, actor Principal, query string) ([]Profile, error) {
	if !actor.IsPrivileged() {
		return nil, ErrForbidden
	}
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, fmt.Errorf("%w: query must be at least 2 characters", ErrInvalidInput)
	}
	return s.profiles.Search(ctx, query, 20)
}
