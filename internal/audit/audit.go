// Package audit records every state-changing or viewing action as an
// immutable log entry. Writes are fire-and-forget relative to the operation
// they describe: a failed append is logged and swallowed, never surfaced.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"docket.org/internal/ids"
	"docket.org/internal/obs"
)

// Action tags are stable identifiers; reports and retention policies key on
// them, so they never change once written.
type Action string

const (
	ActionCreated          Action = "CREATED"
	ActionUpdated          Action = "UPDATED"
	ActionViewed           Action = "VIEWED"
	ActionDownloaded       Action = "DOWNLOADED"
	ActionScanReplaced     Action = "SCAN_REPLACED"
	ActionUserCreated      Action = "USER_CREATED"
	ActionUserDeleted      Action = "USER_DELETED"
	ActionUserEmailUpdated Action = "USER_EMAIL_UPDATED"
	ActionRoleUpdated      Action = "ROLE_UPDATED"
)

// Entry is one append-only audit record. LetterID is empty for
// user-management actions.
type Entry struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UserID    string         `json:"user_id"`
	Action    Action         `json:"action"`
	LetterID  string         `json:"letter_id,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Store appends immutable entries.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
}

// Recorder writes audit entries on behalf of registry and provisioning
// operations.
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder constructs a Recorder.
func NewRecorder(store Store) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	return &Recorder{store: store, now: time.Now}, nil
}

// Record appends one entry. The signature has no error return on purpose:
// the primary operation must not fail because its audit write did.
func (r *Recorder) Record(ctx context.Context, actorID string, action Action, letterID string, meta map[string]any) {
	entry := &Entry{
		ID:        ids.New(),
		CreatedAt: r.now().UTC(),
		UserID:    actorID,
		Action:    action,
		LetterID:  letterID,
		Meta:      meta,
	}
	if err := r.store.Append(ctx, entry); err != nil {
		line, _ := json.Marshal(map[string]any{
			"ts":     time.Now().UTC().Format(time.RFC3339Nano),
			"level":  "error",
			"msg":    "audit append failed",
			"action": string(action),
			"error":  err.Error(),
		})
		obs.Logger().Println(string(line))
	}
}

// ListRecent returns the newest entries, newest first.
func (r *Recorder) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return r.store.ListRecent(ctx, limit)
}
