package registry_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"docket.org/internal/access"
	"docket.org/internal/audit"
	"docket.org/internal/auth"
	"docket.org/internal/blob"
	"docket.org/internal/registry"
	"docket.org/internal/store/memory"
)

var fixedNow = time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

func newService(t *testing.T) (*registry.Service, *memory.Store, *blob.MemoryStore) {
	t.Helper()
	store := memory.New()
	blobs := blob.NewMemoryStore()
	recorder, err := audit.NewRecorder(store.Audit)
	if err != nil {
		t.Fatalf("audit.NewRecorder: %v", err)
	}
	svc, err := registry.NewService(store.Letters, store.Recipients, blobs, recorder, access.Policy{},
		registry.WithBucket("docket-test"),
		registry.WithClock(func() time.Time { return fixedNow }),
	)
	if err != nil {
		t.Fatalf("registry.NewService: %v", err)
	}
	return svc, store, blobs
}

func secretary() auth.Principal {
	return auth.Principal{UserID: "u-sec", FullName: "Secretary", Role: auth.RoleSecretary, Department: "records"}
}

func staff(department string) auth.Principal {
	return auth.Principal{UserID: "u-staff", FullName: "Staff", Role: auth.RoleStaff, Department: department}
}

func validInput() registry.CreateLetterInput {
	return registry.CreateLetterInput{
		Direction:       registry.DirectionIncoming,
		Confidentiality: registry.ConfidentialityPublic,
		DateReceived:    fixedNow,
		SenderName:      "Vendor LLC",
		Subject:         "Quarterly invoice",
	}
}

func TestCreateLetterAllocatesSequentialRefs(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	first, err := svc.CreateLetter(ctx, secretary(), validInput())
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if first.RefNo != "PROC/IN/2026/0001" {
		t.Fatalf("first ref = %q", first.RefNo)
	}

	second, err := svc.CreateLetter(ctx, secretary(), validInput())
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if second.RefNo != "PROC/IN/2026/0002" {
		t.Fatalf("second ref = %q", second.RefNo)
	}

	out := validInput()
	out.Direction = registry.DirectionOutgoing
	third, err := svc.CreateLetter(ctx, secretary(), out)
	if err != nil {
		t.Fatalf("create outgoing: %v", err)
	}
	if third.RefNo != "PROC/OUT/2026/0001" {
		t.Fatalf("outgoing ref = %q", third.RefNo)
	}
}

func TestCreateLetterExplicitRefConflict(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	in := validInput()
	in.RefNo = "PROC/IN/2026/0100"
	if _, err := svc.CreateLetter(ctx, secretary(), in); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.CreateLetter(ctx, secretary(), in); !errors.Is(err, registry.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate explicit ref, got %v", err)
	}
}

func TestCreateLetterValidation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*registry.CreateLetterInput)
	}{
		{"missing sender", func(in *registry.CreateLetterInput) { in.SenderName = "  " }},
		{"missing subject", func(in *registry.CreateLetterInput) { in.Subject = "" }},
		{"missing date", func(in *registry.CreateLetterInput) { in.DateReceived = time.Time{} }},
		{"bad direction", func(in *registry.CreateLetterInput) { in.Direction = "SIDEWAYS" }},
		{"bad status", func(in *registry.CreateLetterInput) { in.Status = "LOST" }},
		{"bad confidentiality", func(in *registry.CreateLetterInput) { in.Confidentiality = "SECRET" }},
		{"internal without department", func(in *registry.CreateLetterInput) {
			in.Confidentiality = registry.ConfidentialityInternal
		}},
		{"confidential without recipients", func(in *registry.CreateLetterInput) {
			in.Confidentiality = registry.ConfidentialityConfidential
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			if _, err := svc.CreateLetter(ctx, secretary(), in); !errors.Is(err, registry.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestCreateLetterDefaultsStatus(t *testing.T) {
	svc, _, _ := newService(t)
	letter, err := svc.CreateLetter(context.Background(), secretary(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if letter.Status != registry.StatusReceived {
		t.Fatalf("expected RECEIVED default, got %q", letter.Status)
	}
}

func TestConfidentialCreateRollsBackOnGrantFailure(t *testing.T) {
	svc, store, _ := newService(t)
	store.Recipients.AddErr = errors.New("grants table unavailable")

	in := validInput()
	in.Confidentiality = registry.ConfidentialityConfidential
	in.RecipientIDs = []string{"u-grantee"}

	if _, err := svc.CreateLetter(context.Background(), secretary(), in); err == nil {
		t.Fatalf("expected error when grant insert fails")
	}
	if n := store.Letters.Count(); n != 0 {
		t.Fatalf("expected compensating delete, %d letters remain", n)
	}
}

func TestUpdateLetterRequiresEditRights(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	letter, err := svc.CreateLetter(ctx, secretary(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	subject := "Changed"
	if _, err := svc.UpdateLetter(ctx, staff("records"), letter.ID, registry.Patch{Subject: &subject}); !errors.Is(err, registry.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for staff update, got %v", err)
	}
	if _, err := svc.UpdateLetter(ctx, secretary(), letter.ID, registry.Patch{}); !errors.Is(err, registry.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty patch, got %v", err)
	}

	updated, err := svc.UpdateLetter(ctx, secretary(), letter.ID, registry.Patch{Subject: &subject})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Subject != "Changed" {
		t.Fatalf("subject = %q", updated.Subject)
	}
	if updated.CreatedBy != letter.CreatedBy {
		t.Fatalf("created_by must never change")
	}
}

func TestReplaceScanAndDownloadRoundTrip(t *testing.T) {
	svc, _, blobs := newService(t)
	ctx := context.Background()
	letter, err := svc.CreateLetter(ctx, secretary(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	payload := []byte("%PDF-1.4 contents")
	updated, err := svc.ReplaceScan(ctx, secretary(), letter.ID, "scan.pdf", "application/pdf", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("replace scan: %v", err)
	}
	if updated.File.Path != "letters/2026/PROC-IN-2026-0001.pdf" {
		t.Fatalf("file path = %q", updated.File.Path)
	}
	if updated.File.Bucket != "docket-test" {
		t.Fatalf("bucket = %q", updated.File.Bucket)
	}

	// Replacing overwrites the object at the same path.
	replacement := []byte("%PDF-1.4 newer")
	if _, err := svc.ReplaceScan(ctx, secretary(), letter.ID, "scan-v2.pdf", "application/pdf", bytes.NewReader(replacement)); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	got, rc, err := svc.Download(ctx, secretary(), letter.ID)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, replacement) {
		t.Fatalf("downloaded stale scan")
	}
	if got.File.Name != "scan-v2.pdf" {
		t.Fatalf("file name = %q", got.File.Name)
	}
	if ct := blobs.ContentType(got.File.Path); ct != "application/pdf" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestReplaceScanRejectsUnknownMime(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	letter, err := svc.CreateLetter(ctx, secretary(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = svc.ReplaceScan(ctx, secretary(), letter.ID, "notes.txt", "text/plain", strings.NewReader("hello"))
	if !errors.Is(err, registry.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDownloadWithoutFile(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	letter, err := svc.CreateLetter(ctx, secretary(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.Download(ctx, secretary(), letter.ID); !errors.Is(err, registry.ErrNoFile) {
		t.Fatalf("expected ErrNoFile, got %v", err)
	}
	if _, err := svc.SignedURL(ctx, secretary(), letter.ID); !errors.Is(err, registry.ErrNoFile) {
		t.Fatalf("expected ErrNoFile from SignedURL, got %v", err)
	}
}

func TestListLettersFiltersByVisibility(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.CreateLetter(ctx, secretary(), validInput()); err != nil {
		t.Fatalf("create public: %v", err)
	}

	internal := validInput()
	internal.Confidentiality = registry.ConfidentialityInternal
	internal.RecipientDepartment = "finance"
	if _, err := svc.CreateLetter(ctx, secretary(), internal); err != nil {
		t.Fatalf("create internal: %v", err)
	}

	confidential := validInput()
	confidential.Confidentiality = registry.ConfidentialityConfidential
	confidential.RecipientIDs = []string{"u-grantee"}
	confLetter, err := svc.CreateLetter(ctx, secretary(), confidential)
	if err != nil {
		t.Fatalf("create confidential: %v", err)
	}

	// Privileged actors see everything.
	all, err := svc.ListLetters(ctx, secretary(), registry.Filter{})
	if err != nil {
		t.Fatalf("list as secretary: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("secretary sees %d letters, want 3", len(all))
	}

	// Engineering staff sees only the public letter.
	visible, err := svc.ListLetters(ctx, staff("engineering"), registry.Filter{})
	if err != nil {
		t.Fatalf("list as staff: %v", err)
	}
	if len(visible) != 1 || visible[0].Confidentiality != registry.ConfidentialityPublic {
		t.Fatalf("staff visibility wrong: %+v", visible)
	}

	// A grantee also sees the confidential letter.
	grantee := auth.Principal{UserID: "u-grantee", Role: auth.RoleStaff, Department: "legal"}
	visible, err = svc.ListLetters(ctx, grantee, registry.Filter{})
	if err != nil {
		t.Fatalf("list as grantee: %v", err)
	}
	if len(visible) != 2 {
		t.Fatalf("grantee sees %d letters, want 2", len(visible))
	}
	found := false
	for _, l := range visible {
		if l.ID == confLetter.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("grantee cannot see granted confidential letter")
	}
}

func TestGetLetterEnforcesVisibilityAndAudits(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()

	internal := validInput()
	internal.Confidentiality = registry.ConfidentialityInternal
	internal.RecipientDepartment = "finance"
	letter, err := svc.CreateLetter(ctx, secretary(), internal)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.GetLetter(ctx, staff("engineering"), letter.ID); !errors.Is(err, registry.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.GetLetter(ctx, staff("finance"), letter.ID); err != nil {
		t.Fatalf("finance staff view: %v", err)
	}

	var viewed int
	for _, e := range store.Audit.Entries() {
		if e.Action == audit.ActionViewed {
			viewed++
		}
	}
	// The denied view never reaches the audit trail.
	if viewed != 1 {
		t.Fatalf("expected exactly one VIEWED entry, got %d", viewed)
	}
}

func TestRecipientOperationsRequireEditRights(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	confidential := validInput()
	confidential.Confidentiality = registry.ConfidentialityConfidential
	confidential.RecipientIDs = []string{"u-one"}
	letter, err := svc.CreateLetter(ctx, secretary(), confidential)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.AddRecipients(ctx, staff("records"), letter.ID, []string{"u-two"}); !errors.Is(err, registry.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for staff add, got %v", err)
	}
	if err := svc.AddRecipients(ctx, secretary(), letter.ID, nil); !errors.Is(err, registry.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty add, got %v", err)
	}
	if err := svc.AddRecipients(ctx, secretary(), letter.ID, []string{"u-two", "u-two", " "}); err != nil {
		t.Fatalf("add: %v", err)
	}
	got, err := svc.ListRecipients(ctx, secretary(), letter.ID)
	if err != nil {
		t.Fatalf("list recipients: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("recipients = %v, want 2 entries", got)
	}
	if err := svc.RemoveRecipient(ctx, secretary(), letter.ID, "u-one"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := svc.ClearRecipients(ctx, secretary(), letter.ID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, err = svc.ListRecipients(ctx, secretary(), letter.ID)
	if err != nil {
		t.Fatalf("list after clear: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no recipients after clear, got %v", got)
	}
}

func TestNextRefNoValidatesYear(t *testing.T) {
	svc, _, _ := newService(t)
	if _, err := svc.NextRefNo(context.Background(), registry.DirectionIncoming, 123); !errors.Is(err, registry.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad year, got %v", err)
	}
}
