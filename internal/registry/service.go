package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"docket.org/internal/audit"
	"docket.org/internal/auth"
	"docket.org/internal/blob"
	"docket.org/internal/ids"
)

const (
	defaultRefPrefix = "PROC"
	maxPageSize      = 50
	signedURLTTL     = 10 * time.Minute
	allocateAttempts = 3
)

// mimeExtensions is the scan upload allowlist.
var mimeExtensions = map[string]string{
	"application/pdf": "pdf",
	"image/jpeg":      "jpg",
	"image/png":       "png",
}

// Service owns letter records, their lifecycle and reference-number
// allocation. Authorization is delegated to the injected Authorizer and
// every operation leaves exactly one audit entry.
type Service struct {
	letters    LetterStore
	recipients RecipientStore
	blobs      blob.Store
	recorder   *audit.Recorder
	authz      Authorizer
	prefix     string
	bucket     string
	now        func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithRefPrefix overrides the office reference-number prefix.
func WithRefPrefix(prefix string) ServiceOption {
	return func(s *Service) {
		if trimmed := strings.TrimSpace(prefix); trimmed != "" {
			s.prefix = trimmed
		}
	}
}

// WithBucket records the bucket name stamped onto letter file references.
func WithBucket(bucket string) ServiceOption {
	return func(s *Service) { s.bucket = bucket }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the letter registry.
func NewService(letters LetterStore, recipients RecipientStore, blobs blob.Store, recorder *audit.Recorder, authz Authorizer, opts ...ServiceOption) (*Service, error) {
	if letters == nil || recipients == nil {
		return nil, errors.New("letter and recipient stores are required")
	}
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if recorder == nil {
		return nil, errors.New("audit recorder is required")
	}
	if authz == nil {
		return nil, errors.New("authorizer is required")
	}
	svc := &Service{
		letters:    letters,
		recipients: recipients,
		blobs:      blobs,
		recorder:   recorder,
		authz:      authz,
		prefix:     defaultRefPrefix,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// NextRefNo allocates the next reference number for a direction and year.
// Allocation reads the current maximum suffix; uniqueness is ultimately
// enforced by the store's constraint on insert.
func (s *Service) NextRefNo(ctx context.Context, direction Direction, year int) (string, error) {
	if year < 1900 || year > 9999 {
		return "", fmt.Errorf("%w: year %d out of range", ErrInvalidInput, year)
	}
	existing, err := s.letters.RefNosWithPrefix(ctx, RefPrefix(s.prefix, direction, year))
	if err != nil {
		return "", err
	}
	return NextRefNo(s.prefix, direction, year, existing), nil
}

// CreateLetterInput carries the intake payload. The file is expected to be
// uploaded to the blob store before the record is created; File may be
// empty for records registered ahead of scanning.
type CreateLetterInput struct {
	RefNo               string
	Direction           Direction
	Status              Status
	Confidentiality     Confidentiality
	DateReceived        time.Time
	DateOnLetter        *time.Time
	SenderName          string
	SenderOrg           string
	RecipientDepartment string
	Subject             string
	Summary             string
	Category            string
	Tags                []string
	File                FileRef
	RecipientIDs        []string
}

func (s *Service) validateCreate(in *CreateLetterInput) error {
	in.SenderName = strings.TrimSpace(in.SenderName)
	in.Subject = strings.TrimSpace(in.Subject)
	in.RecipientDepartment = strings.TrimSpace(in.RecipientDepartment)
	if in.SenderName == "" {
		return fmt.Errorf("%w: sender_name is required", ErrInvalidInput)
	}
	if in.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	if in.DateReceived.IsZero() {
		return fmt.Errorf("%w: date_received is required", ErrInvalidInput)
	}
	switch in.Direction {
	case DirectionIncoming, DirectionOutgoing:
	default:
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidInput, in.Direction)
	}
	if in.Status == "" {
		in.Status = StatusReceived
	}
	switch in.Status {
	case StatusReceived, StatusScanned, StatusAssigned, StatusArchived:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, in.Status)
	}
	switch in.Confidentiality {
	case ConfidentialityPublic:
	case ConfidentialityInternal:
		if in.RecipientDepartment == "" {
			return fmt.Errorf("%w: recipient_department is required for INTERNAL letters", ErrInvalidInput)
		}
	case ConfidentialityConfidential:
		if len(dedupe(in.RecipientIDs)) == 0 {
			return fmt.Errorf("%w: CONFIDENTIAL letters require at least one recipient", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown confidentiality %q", ErrInvalidInput, in.Confidentiality)
	}
	return nil
}

// CreateLetter validates the payload, inserts the record and, for
// CONFIDENTIAL letters, the recipient grants. A failed grant insert fires a
// compensating delete so no confidential letter exists without grantees.
// With an empty RefNo the allocate-then-insert sequence retries a bounded
// number of times on reference collisions before surfacing the conflict.
func (s *Service) CreateLetter(ctx context.Context, actor auth.Principal, in CreateLetterInput) (Letter, error) {
	if err := s.validateCreate(&in); err != nil {
		return Letter{}, err
	}

	autoRef := strings.TrimSpace(in.RefNo) == ""
	attempts := 1
	if autoRef {
		attempts = allocateAttempts
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		refNo := strings.TrimSpace(in.RefNo)
		if autoRef {
			var err error
			refNo, err = s.NextRefNo(ctx, in.Direction, s.now().UTC().Year())
			if err != nil {
				return Letter{}, err
			}
		}
		letter, err := s.insertWithRecipients(ctx, actor, in, refNo)
		if err == nil {
			return letter, nil
		}
		if !errors.Is(err, ErrConflict) || !autoRef {
			return Letter{}, err
		}
		lastErr = err
	}
	return Letter{}, lastErr
}

func (s *Service) insertWithRecipients(ctx context.Context, actor auth.Principal, in CreateLetterInput, refNo string) (Letter, error) {
	now := s.now().UTC()
	letter := Letter{
		ID:                  ids.New(),
		RefNo:               refNo,
		Direction:           in.Direction,
		Status:              in.Status,
		Confidentiality:     in.Confidentiality,
		DateReceived:        in.DateReceived,
		DateOnLetter:        in.DateOnLetter,
		SenderName:          in.SenderName,
		SenderOrg:           strings.TrimSpace(in.SenderOrg),
		RecipientDepartment: in.RecipientDepartment,
		Subject:             in.Subject,
		Summary:             strings.TrimSpace(in.Summary),
		Category:            strings.TrimSpace(in.Category),
		Tags:                dedupe(in.Tags),
		File:                in.File,
		CreatedBy:           actor.UserID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if letter.File.Path != "" && letter.File.Bucket == "" {
		letter.File.Bucket = s.bucket
	}

	if err := s.letters.Insert(ctx, &letter); err != nil {
		return Letter{}, err
	}

	if letter.Confidentiality == ConfidentialityConfidential {
		if err := s.recipients.Add(ctx, letter.ID, dedupe(in.RecipientIDs)); err != nil {
			// Compensating delete: never leave a confidential letter with
			// no grantees behind.
			if delErr := s.letters.Delete(ctx, letter.ID); delErr != nil {
				return Letter{}, fmt.Errorf("add recipients: %v (compensating delete also failed: %w)", err, delErr)
			}
			return Letter{}, fmt.Errorf("add recipients: %w", err)
		}
	}

	s.recorder.Record(ctx, actor.UserID, audit.ActionCreated, letter.ID, map[string]any{
		"ref_no":          letter.RefNo,
		"direction":       string(letter.Direction),
		"confidentiality": string(letter.Confidentiality),
	})
	return letter, nil
}

// GetLetter returns a single letter after a visibility check and records
// the view in the audit trail.
func (s *Service) GetLetter(ctx context.Context, actor auth.Principal, id string) (Letter, error) {
	letter, err := s.visibleLetter(ctx, actor, id)
	if err != nil {
		return Letter{}, err
	}
	s.recorder.Record(ctx, actor.UserID, audit.ActionViewed, letter.ID, map[string]any{
		"ref_no": letter.RefNo,
	})
	return letter, nil
}

// UpdateLetter applies a partial update. Only privileged roles may edit;
// created_by is never touched and updated_at is always stamped by the store.
func (s *Service) UpdateLetter(ctx context.Context, actor auth.Principal, id string, patch Patch) (Letter, error) {
	if !s.authz.CanEdit(actor) {
		return Letter{}, ErrForbidden
	}
	if err := validatePatch(patch); err != nil {
		return Letter{}, err
	}
	fields := patch.FieldNames()
	if len(fields) == 0 {
		return Letter{}, fmt.Errorf("%w: empty update", ErrInvalidInput)
	}
	letter, err := s.letters.Update(ctx, id, patch)
	if err != nil {
		return Letter{}, err
	}
	s.recorder.Record(ctx, actor.UserID, audit.ActionUpdated, letter.ID, map[string]any{
		"fields": fields,
	})
	return letter, nil
}

func validatePatch(p Patch) error {
	if p.Direction != nil {
		if _, err := ParseDirection(string(*p.Direction)); err != nil {
			return err
		}
	}
	if p.Status != nil {
		if _, err := ParseStatus(string(*p.Status)); err != nil {
			return err
		}
	}
	if p.Confidentiality != nil {
		if _, err := ParseConfidentiality(string(*p.Confidentiality)); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceScan validates the MIME type, stores the blob at the letter's
// deterministic path, then updates the file fields. The previous object at
// the path is overwritten: replace semantics, not versioning.
func (s *Service) ReplaceScan(ctx context.Context, actor auth.Principal, id, fileName, mimeType string, data io.Reader) (Letter, error) {
	if !s.authz.CanEdit(actor) {
		return Letter{}, ErrForbidden
	}
	ext, ok := mimeExtensions[strings.ToLower(strings.TrimSpace(mimeType))]
	if !ok {
		return Letter{}, fmt.Errorf("%w: unsupported mime type %q", ErrInvalidInput, mimeType)
	}
	letter, err := s.letters.Find(ctx, id)
	if err != nil {
		return Letter{}, err
	}

	path := FilePathFor(letter.Year(), letter.RefNo, ext)
	if err := s.blobs.Put(ctx, path, mimeType, data); err != nil {
		return Letter{}, err
	}

	updated, err := s.letters.UpdateFile(ctx, id, FileRef{
		Bucket:   s.bucket,
		Path:     path,
		Name:     strings.TrimSpace(fileName),
		MimeType: mimeType,
	})
	if err != nil {
		return Letter{}, err
	}
	s.recorder.Record(ctx, actor.UserID, audit.ActionScanReplaced, letter.ID, map[string]any{
		"ref_no":    letter.RefNo,
		"file_path": path,
		"mime_type": mimeType,
	})
	return updated, nil
}

// ListLetters returns visible letters matching the filter, newest first,
// capped at the maximum page size. Confidential letters the actor holds no
// grant for never leave the server.
func (s *Service) ListLetters(ctx context.Context, actor auth.Principal, f Filter) ([]Letter, error) {
	if f.Limit <= 0 || f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	letters, err := s.letters.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if actor.IsPrivileged() {
		return letters, nil
	}

	grants, err := s.recipients.LetterIDsForUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	visible := letters[:0]
	for _, l := range letters {
		_, granted := grants[l.ID]
		if s.authz.CanView(actor, l, granted) {
			visible = append(visible, l)
		}
	}
	return visible, nil
}

// Download streams the letter's file after a visibility check and records
// the download. Callers own closing the reader.
func (s *Service) Download(ctx context.Context, actor auth.Principal, id string) (Letter, io.ReadCloser, error) {
	letter, err := s.visibleLetter(ctx, actor, id)
	if err != nil {
		return Letter{}, nil, err
	}
	if letter.File.Path == "" {
		return Letter{}, nil, ErrNoFile
	}
	rc, err := s.blobs.Open(ctx, letter.File.Path)
	if err != nil {
		return Letter{}, nil, err
	}
	s.recorder.Record(ctx, actor.UserID, audit.ActionDownloaded, letter.ID, map[string]any{
		"ref_no":    letter.RefNo,
		"file_path": letter.File.Path,
	})
	return letter, rc, nil
}

// SignedURL returns a 10-minute direct download URL for the letter's file.
func (s *Service) SignedURL(ctx context.Context, actor auth.Principal, id string) (string, error) {
	letter, err := s.visibleLetter(ctx, actor, id)
	if err != nil {
		return "", err
	}
	if letter.File.Path == "" {
		return "", ErrNoFile
	}
	return s.blobs.SignedURL(ctx, letter.File.Path, signedURLTTL)
}

// AddRecipients grants additional users visibility into a letter.
func (s *Service) AddRecipients(ctx context.Context, actor auth.Principal, letterID string, userIDs []string) error {
	if !s.authz.CanEdit(actor) {
		return ErrForbidden
	}
	userIDs = dedupe(userIDs)
	if len(userIDs) == 0 {
		return fmt.Errorf("%w: at least one user_id is required", ErrInvalidInput)
	}
	if _, err := s.letters.Find(ctx, letterID); err != nil {
		return err
	}
	return s.recipients.Add(ctx, letterID, userIDs)
}

// RemoveRecipient revokes one user's grant.
func (s *Service) RemoveRecipient(ctx context.Context, actor auth.Principal, letterID, userID string) error {
	if !s.authz.CanEdit(actor) {
		return ErrForbidden
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.recipients.Remove(ctx, letterID, userID)
}

// ClearRecipients revokes every grant on a letter.
func (s *Service) ClearRecipients(ctx context.Context, actor auth.Principal, letterID string) error {
	if !s.authz.CanEdit(actor) {
		return ErrForbidden
	}
	if _, err := s.letters.Find(ctx, letterID); err != nil {
		return err
	}
	return s.recipients.Clear(ctx, letterID)
}

// ListRecipients returns the grantee ids for a letter.
func (s *Service) ListRecipients(ctx context.Context, actor auth.Principal, letterID string) ([]string, error) {
	if !s.authz.CanEdit(actor) {
		return nil, ErrForbidden
	}
	if _, err := s.letters.Find(ctx, letterID); err != nil {
		return nil, err
	}
	return s.recipients.List(ctx, letterID)
}

func (s *Service) visibleLetter(ctx context.Context, actor auth.Principal, id string) (Letter, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Letter{}, fmt.Errorf("%w: letter id is required", ErrInvalidInput)
	}
	letter, err := s.letters.Find(ctx, id)
	if err != nil {
		return Letter{}, err
	}
	granted := false
	if letter.Confidentiality == ConfidentialityConfidential && !actor.IsPrivileged() {
		granted, err = s.recipients.IsRecipient(ctx, letter.ID, actor.UserID)
		if err != nil {
			return Letter{}, err
		}
	}
	if !s.authz.CanView(actor, letter, granted) {
		return Letter{}, ErrForbidden
	}
	return letter, nil
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
