package auth_test

import (
	"context"
	"errors"
	"testing"

	"docket.org/internal/audit"
	"docket.org/internal/auth"
	"docket.org/internal/store/memory"
)

func newService(t *testing.T) (*auth.Service, *memory.Store) {
	t.Helper()
	t.Setenv("DOCKET_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	store := memory.New()
	recorder, err := audit.NewRecorder(store.Audit)
	if err != nil {
		t.Fatalf("audit.NewRecorder: %v", err)
	}
	svc, err := auth.NewService(store.Accounts, store.Profiles, recorder)
	if err != nil {
		t.Fatalf("auth.NewService: %v", err)
	}
	return svc, store
}

func adminActor() auth.Principal {
	return auth.Principal{UserID: "u-admin", FullName: "Admin", Role: auth.RoleAdmin}
}

func TestLoginIssuesToken(t *testing.T) {
	svc, store := newService(t)
	hash, err := auth.HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	store.Accounts.Seed("u-1", "user@docket.org", hash)

	session, err := svc.Login(context.Background(), "User@Docket.org", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := auth.ParseAndValidate(session.Token)
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if claims.Subject != "u-1" {
		t.Fatalf("unexpected subject: %q", claims.Subject)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	svc, store := newService(t)
	hash, _ := auth.HashPassword("correct-horse")
	store.Accounts.Seed("u-1", "user@docket.org", hash)

	cases := []struct{ email, password string }{
		{"user@docket.org", "wrong-password"},
		{"ghost@docket.org", "correct-horse"},
		{"", "correct-horse"},
		{"user@docket.org", ""},
	}
	for _, tc := range cases {
		if _, err := svc.Login(context.Background(), tc.email, tc.password); !errors.Is(err, auth.ErrUnauthenticated) {
			t.Fatalf("login(%q, %q): expected ErrUnauthenticated, got %v", tc.email, tc.password, err)
		}
	}
}

func TestCreateUserValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	base := auth.CreateUserInput{
		Email:    "new@docket.org",
		Password: "longenough",
		Role:     "STAFF",
		FullName: "New User",
	}

	// Non-admin actors are refused outright.
	staff := auth.Principal{UserID: "u-s", Role: auth.RoleStaff}
	if _, err := svc.CreateUser(ctx, staff, base); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for staff actor, got %v", err)
	}

	bad := base
	bad.Email = "not-an-email"
	if _, err := svc.CreateUser(ctx, adminActor(), bad); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad email, got %v", err)
	}

	bad = base
	bad.Password = "short"
	if _, err := svc.CreateUser(ctx, adminActor(), bad); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for short password, got %v", err)
	}

	bad = base
	bad.Role = "OVERLORD"
	if _, err := svc.CreateUser(ctx, adminActor(), bad); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown role, got %v", err)
	}

	bad = base
	bad.FullName = "   "
	if _, err := svc.CreateUser(ctx, adminActor(), bad); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank name, got %v", err)
	}
}

func TestCreateUserProvisionsBothStores(t *testing.T) {
	svc, store := newService(t)

	profile, err := svc.CreateUser(context.Background(), adminActor(), auth.CreateUserInput{
		Email:      "new@docket.org",
		Password:   "longenough",
		Role:       "SECRETARY",
		Department: "records",
		FullName:   "New User",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if profile.Role != auth.RoleSecretary {
		t.Fatalf("unexpected role: %q", profile.Role)
	}
	if _, err := store.Accounts.FindAccount(context.Background(), profile.ID); err != nil {
		t.Fatalf("account not created: %v", err)
	}
	if _, err := store.Profiles.Find(context.Background(), profile.ID); err != nil {
		t.Fatalf("profile not created: %v", err)
	}

	// Duplicate email is a conflict.
	_, err = svc.CreateUser(context.Background(), adminActor(), auth.CreateUserInput{
		Email:    "new@docket.org",
		Password: "longenough",
		Role:     "STAFF",
		FullName: "Other User",
	})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}
}

func TestCreateUserPartialProvision(t *testing.T) {
	svc, store := newService(t)
	store.Profiles.CreateErr = errors.New("profile table unavailable")

	_, err := svc.CreateUser(context.Background(), adminActor(), auth.CreateUserInput{
		Email:    "orphan@docket.org",
		Password: "longenough",
		Role:     "STAFF",
		FullName: "Orphaned",
	})
	if !errors.Is(err, auth.ErrPartialProvision) {
		t.Fatalf("expected ErrPartialProvision, got %v", err)
	}
	// The orphaned account is left behind for reconciliation.
	if _, _, err := store.Accounts.FindAccountByEmail(context.Background(), "orphan@docket.org"); err != nil {
		t.Fatalf("expected orphaned account to remain: %v", err)
	}
}

func TestDeleteUserRefusesSelf(t *testing.T) {
	svc, _ := newService(t)
	err := svc.DeleteUser(context.Background(), adminActor(), "u-admin")
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict for self-delete, got %v", err)
	}
}

func TestDeleteUserPartialDelete(t *testing.T) {
	svc, store := newService(t)
	profile, err := svc.CreateUser(context.Background(), adminActor(), auth.CreateUserInput{
		Email:    "victim@docket.org",
		Password: "longenough",
		Role:     "STAFF",
		FullName: "Victim",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	store.Accounts.DeleteErr = errors.New("identity provider timeout")

	err = svc.DeleteUser(context.Background(), adminActor(), profile.ID)
	if !errors.Is(err, auth.ErrPartialDelete) {
		t.Fatalf("expected ErrPartialDelete, got %v", err)
	}
	// Profile is gone, account remains.
	if _, err := store.Profiles.Find(context.Background(), profile.ID); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected profile removed, got %v", err)
	}
	if _, err := store.Accounts.FindAccount(context.Background(), profile.ID); err != nil {
		t.Fatalf("expected account to remain: %v", err)
	}
}

func TestSetRoleRejectsUnknownRole(t *testing.T) {
	svc, store := newService(t)
	profile, err := svc.CreateUser(context.Background(), adminActor(), auth.CreateUserInput{
		Email:    "user@docket.org",
		Password: "longenough",
		Role:     "STAFF",
		FullName: "User",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if _, err := svc.SetRole(context.Background(), adminActor(), profile.ID, "WIZARD", "", ""); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	// Unknown role leaves the profile untouched.
	got, err := store.Profiles.Find(context.Background(), profile.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Role != auth.RoleStaff {
		t.Fatalf("role mutated on invalid input: %q", got.Role)
	}
}

func TestSearchProfilesRequiresPrivilege(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.SearchProfiles(ctx, auth.Principal{UserID: "u", Role: auth.RoleStaff}, "ada"); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for staff, got %v", err)
	}
	if _, err := svc.SearchProfiles(ctx, adminActor(), "a"); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for short query, got %v", err)
	}
}
