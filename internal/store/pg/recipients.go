package pg

import (
	"context"
	"database/sql"
	"errors"

	"docket.org/internal/registry"
)

// RecipientStore implements registry.RecipientStore over letter_recipients.
type RecipientStore struct {
	db *sql.DB
}

var _ registry.RecipientStore = (*RecipientStore)(nil)

func (s *RecipientStore) Add(ctx context.Context, letterID string, userIDs []string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	for _, userID := range userIDs {
		_, err := s.db.ExecContext(ctx, `
			insert into letter_recipients (letter_id, user_id)
			values ($1, $2)
			on conflict (letter_id, user_id) do nothing
		`, letterID, userID)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return registry.ErrNotFound
			}
			return err
		}
	}
	return nil
}

func (s *RecipientStore) Remove(ctx context.Context, letterID, userID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		delete from letter_recipients where letter_id = $1 and user_id = $2
	`, letterID, userID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return registry.ErrNotFound
	}
	return nil
}

func (s *RecipientStore) Clear(ctx context.Context, letterID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `delete from letter_recipients where letter_id = $1`, letterID)
	return err
}

func (s *RecipientStore) List(ctx context.Context, letterID string) ([]string, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select user_id from letter_recipients where letter_id = $1 order by user_id
	`, letterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *RecipientStore) IsRecipient(ctx context.Context, letterID, userID string) (bool, error) {
	if s.db == nil {
		return false, errors.New("database connection unavailable")
	}
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		select exists (
			select 1 from letter_recipients where letter_id = $1 and user_id = $2
		)
	`, letterID, userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *RecipientStore) LetterIDsForUser(ctx context.Context, userID string) (map[string]struct{}, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select letter_id from letter_recipients where user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grants := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		grants[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}
