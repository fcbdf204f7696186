// Package memory provides in-process implementations of every persistence
// port. The API server falls back to them when no database DSN is
// configured, and the service tests run against them.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"docket.org/internal/audit"
	"docket.org/internal/auth"
	"docket.org/internal/ids"
	"docket.org/internal/registry"
)

// Store bundles one in-memory instance of each persistence port.
type Store struct {
	Accounts   *AccountStore
	Profiles   *ProfileStore
	Letters    *LetterStore
	Recipients *RecipientStore
	Audit      *AuditStore
}

// New creates an empty store bundle.
func New() *Store {
	return &Store{
		Accounts:   &AccountStore{accounts: make(map[string]accountRecord)},
		Profiles:   &ProfileStore{profiles: make(map[string]auth.Profile)},
		Letters:    &LetterStore{letters: make(map[string]registry.Letter)},
		Recipients: &RecipientStore{grants: make(map[string]map[string]struct{})},
		Audit:      &AuditStore{},
	}
}

// --- identity accounts ---

type accountRecord struct {
	account auth.Account
	hash    string
}

// AccountStore implements auth.IdentityService in memory.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]accountRecord

	// CreateErr and DeleteErr inject failures for exercising the
	// partial-provisioning paths in tests. Consumed on first use.
	CreateErr error
	DeleteErr error
}

var _ auth.IdentityService = (*AccountStore)(nil)

func (s *AccountStore) CreateAccount(ctx context.Context, email, passwordHash string) (auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		err := s.CreateErr
		s.CreateErr = nil
		return auth.Account{}, err
	}
	for _, rec := range s.accounts {
		if rec.account.Email == email {
			return auth.Account{}, fmt.Errorf("%w: email %s", auth.ErrConflict, email)
		}
	}
	account := auth.Account{ID: ids.New(), Email: email, CreatedAt: time.Now().UTC()}
	s.accounts[account.ID] = accountRecord{account: account, hash: passwordHash}
	return account, nil
}

func (s *AccountStore) FindAccount(ctx context.Context, id string) (auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.accounts[id]
	if !ok {
		return auth.Account{}, auth.ErrNotFound
	}
	return rec.account, nil
}

func (s *AccountStore) FindAccountByEmail(ctx context.Context, email string) (auth.Account, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.accounts {
		if rec.account.Email == email {
			return rec.account, rec.hash, nil
		}
	}
	return auth.Account{}, "", auth.ErrNotFound
}

func (s *AccountStore) UpdateAccountEmail(ctx context.Context, id, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.accounts[id]
	if !ok {
		return auth.ErrNotFound
	}
	for otherID, other := range s.accounts {
		if otherID != id && other.account.Email == email {
			return fmt.Errorf("%w: email %s", auth.ErrConflict, email)
		}
	}
	rec.account.Email = email
	s.accounts[id] = rec
	return nil
}

func (s *AccountStore) DeleteAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		err := s.DeleteErr
		s.DeleteErr = nil
		return err
	}
	if _, ok := s.accounts[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.accounts, id)
	return nil
}

// Seed inserts an account with a fixed id, for tests.
func (s *AccountStore) Seed(id, email, passwordHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[id] = accountRecord{
		account: auth.Account{ID: id, Email: email, CreatedAt: time.Now().UTC()},
		hash:    passwordHash,
	}
}

// --- profiles ---

// ProfileStore implements auth.ProfileStore in memory.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]auth.Profile

	// CreateErr injects a failure, consumed on first use.
	CreateErr error
}

var _ auth.ProfileStore = (*ProfileStore)(nil)

func (s *ProfileStore) Create(ctx context.Context, p *auth.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		err := s.CreateErr
		s.CreateErr = nil
		return err
	}
	if _, ok := s.profiles[p.ID]; ok {
		return auth.ErrConflict
	}
	s.profiles[p.ID] = *p
	return nil
}

func (s *ProfileStore) Find(ctx context.Context, id string) (auth.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return auth.Profile{}, auth.ErrNotFound
	}
	return p, nil
}

func (s *ProfileStore) Update(ctx context.Context, id string, upd auth.ProfileUpdate) (auth.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return auth.Profile{}, auth.ErrNotFound
	}
	if upd.FullName != nil {
		p.FullName = *upd.FullName
	}
	if upd.Role != nil {
		p.Role = *upd.Role
	}
	if upd.Department != nil {
		p.Department = *upd.Department
	}
	s.profiles[id] = p
	return p, nil
}

func (s *ProfileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.profiles, id)
	return nil
}

func (s *ProfileStore) Search(ctx context.Context, query string, limit int) ([]auth.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(query)
	var result []auth.Profile
	for _, p := range s.profiles {
		if strings.Contains(strings.ToLower(p.FullName), needle) ||
			strings.Contains(strings.ToLower(p.Department), needle) {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FullName < result[j].FullName })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// --- letters ---

// LetterStore implements registry.LetterStore in memory.
type LetterStore struct {
	mu      sync.RWMutex
	letters map[string]registry.Letter
}

var _ registry.LetterStore = (*LetterStore)(nil)

func (s *LetterStore) Insert(ctx context.Context, l *registry.Letter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.letters {
		if existing.RefNo == l.RefNo {
			return fmt.Errorf("%w: %s", registry.ErrConflict, l.RefNo)
		}
	}
	s.letters[l.ID] = *l
	return nil
}

func (s *LetterStore) Find(ctx context.Context, id string) (registry.Letter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.letters[id]
	if !ok {
		return registry.Letter{}, registry.ErrNotFound
	}
	return l, nil
}

func (s *LetterStore) Update(ctx context.Context, id string, patch registry.Patch) (registry.Letter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.letters[id]
	if !ok {
		return registry.Letter{}, registry.ErrNotFound
	}
	if patch.Direction != nil {
		l.Direction = *patch.Direction
	}
	if patch.Status != nil {
		l.Status = *patch.Status
	}
	if patch.Confidentiality != nil {
		l.Confidentiality = *patch.Confidentiality
	}
	if patch.DateReceived != nil {
		l.DateReceived = *patch.DateReceived
	}
	if patch.DateOnLetter != nil {
		l.DateOnLetter = patch.DateOnLetter
	}
	if patch.SenderName != nil {
		l.SenderName = *patch.SenderName
	}
	if patch.SenderOrg != nil {
		l.SenderOrg = *patch.SenderOrg
	}
	if patch.RecipientDepartment != nil {
		l.RecipientDepartment = *patch.RecipientDepartment
	}
	if patch.Subject != nil {
		l.Subject = *patch.Subject
	}
	if patch.Summary != nil {
		l.Summary = *patch.Summary
	}
	if patch.Category != nil {
		l.Category = *patch.Category
	}
	if patch.Tags != nil {
		l.Tags = patch.Tags
	}
	l.UpdatedAt = time.Now().UTC()
	s.letters[id] = l
	return l, nil
}

func (s *LetterStore) UpdateFile(ctx context.Context, id string, f registry.FileRef) (registry.Letter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.letters[id]
	if !ok {
		return registry.Letter{}, registry.ErrNotFound
	}
	l.File = f
	l.UpdatedAt = time.Now().UTC()
	s.letters[id] = l
	return l, nil
}

func (s *LetterStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.letters[id]; !ok {
		return registry.ErrNotFound
	}
	delete(s.letters, id)
	return nil
}

func (s *LetterStore) List(ctx context.Context, f registry.Filter) ([]registry.Letter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []registry.Letter
	needle := strings.ToLower(strings.TrimSpace(f.Query))
	for _, l := range s.letters {
		if f.Direction != "" && l.Direction != f.Direction {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if f.Confidentiality != "" && l.Confidentiality != f.Confidentiality {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(l.Subject), needle) &&
			!strings.Contains(strings.ToLower(l.SenderName), needle) &&
			!strings.Contains(strings.ToLower(l.RefNo), needle) {
			continue
		}
		result = append(result, l)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

func (s *LetterStore) RefNosWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var refs []string
	for _, l := range s.letters {
		if strings.HasPrefix(l.RefNo, prefix) {
			refs = append(refs, l.RefNo)
		}
	}
	return refs, nil
}

// Count reports the stored letter count, for tests.
func (s *LetterStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.letters)
}

// --- recipient grants ---

// RecipientStore implements registry.RecipientStore in memory.
type RecipientStore struct {
	mu     sync.RWMutex
	grants map[string]map[string]struct{}

	// AddErr makes the next Add fail, for exercising the compensating
	// delete in tests. Consumed on first use.
	AddErr error
}

var _ registry.RecipientStore = (*RecipientStore)(nil)

func (s *RecipientStore) Add(ctx context.Context, letterID string, userIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AddErr != nil {
		err := s.AddErr
		s.AddErr = nil
		return err
	}
	grantees, ok := s.grants[letterID]
	if !ok {
		grantees = make(map[string]struct{})
		s.grants[letterID] = grantees
	}
	for _, id := range userIDs {
		grantees[id] = struct{}{}
	}
	return nil
}

func (s *RecipientStore) Remove(ctx context.Context, letterID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grants[letterID][userID]; !ok {
		return registry.ErrNotFound
	}
	delete(s.grants[letterID], userID)
	return nil
}

func (s *RecipientStore) Clear(ctx context.Context, letterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, letterID)
	return nil
}

func (s *RecipientStore) List(ctx context.Context, letterID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grantees := s.grants[letterID]
	result := make([]string, 0, len(grantees))
	for id := range grantees {
		result = append(result, id)
	}
	sort.Strings(result)
	return result, nil
}

func (s *RecipientStore) IsRecipient(ctx context.Context, letterID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.grants[letterID][userID]
	return ok, nil
}

func (s *RecipientStore) LetterIDsForUser(ctx context.Context, userID string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]struct{})
	for letterID, grantees := range s.grants {
		if _, ok := grantees[userID]; ok {
			result[letterID] = struct{}{}
		}
	}
	return result, nil
}

// --- audit log ---

// AuditStore implements audit.Store in memory.
type AuditStore struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

var _ audit.Store = (*AuditStore)(nil)

func (s *AuditStore) Append(ctx context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *AuditStore) ListRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]audit.Entry, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.entries[i])
	}
	return result, nil
}

// Entries returns a copy of everything appended so far, for tests.
func (s *AuditStore) Entries() []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
