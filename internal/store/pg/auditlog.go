package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"docket.org/internal/audit"
)

// AuditStore implements audit.Store over the append-only audit_log table.
type AuditStore struct {
	db *sql.DB
}

var _ audit.Store = (*AuditStore)(nil)

func (s *AuditStore) Append(ctx context.Context, e *audit.Entry) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	var meta []byte
	if len(e.Meta) > 0 {
		data, err := json.Marshal(e.Meta)
		if err != nil {
			return fmt.Errorf("marshal audit meta: %w", err)
		}
		meta = data
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_log (id, created_at, user_id, action, letter_id, meta)
		values ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.CreatedAt, e.UserID, string(e.Action), nullIfEmpty(e.LetterID), meta)
	return err
}

func (s *AuditStore) ListRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, created_at, user_id, action, coalesce(letter_id, ''), meta
		from audit_log
		order by created_at desc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			e       audit.Entry
			action  string
			rawMeta []byte
		)
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.UserID, &action, &e.LetterID, &rawMeta); err != nil {
			return nil, err
		}
		e.Action = audit.Action(action)
		if len(rawMeta) > 0 {
			if err := json.Unmarshal(rawMeta, &e.Meta); err != nil {
				return nil, fmt.Errorf("decode audit meta: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
