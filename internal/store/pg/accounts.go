package pg

import (
	"context"
	"database/sql"
	"errors"

	"docket.org/internal/auth"
	"docket.org/internal/ids"
)

// AccountStore implements auth.IdentityService over the accounts table.
type AccountStore struct {
	db *sql.DB
}

var _ auth.IdentityService = (*AccountStore)(nil)

func (s *AccountStore) CreateAccount(ctx context.Context, email, passwordHash string) (auth.Account, error) {
	if s.db == nil {
		return auth.Account{}, errors.New("database connection unavailable")
	}
	id := ids.New()
	var account auth.Account
	err := s.db.QueryRowContext(ctx, `
		insert into accounts (id, email, password_hash)
		values ($1, $2, $3)
		returning id, email, created_at
	`, id, email, passwordHash).Scan(&account.ID, &account.Email, &account.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.Account{}, auth.ErrConflict
		}
		return auth.Account{}, err
	}
	return account, nil
}

func (s *AccountStore) FindAccount(ctx context.Context, id string) (auth.Account, error) {
	if s.db == nil {
		return auth.Account{}, errors.New("database connection unavailable")
	}
	var account auth.Account
	err := s.db.QueryRowContext(ctx, `
		select id, email, created_at from accounts where id = $1
	`, id).Scan(&account.ID, &account.Email, &account.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Account{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Account{}, err
	}
	return account, nil
}

func (s *AccountStore) FindAccountByEmail(ctx context.Context, email string) (auth.Account, string, error) {
	if s.db == nil {
		return auth.Account{}, "", errors.New("database connection unavailable")
	}
	var (
		account auth.Account
		hash    string
	)
	err := s.db.QueryRowContext(ctx, `
		select id, email, password_hash, created_at from accounts where email = $1
	`, email).Scan(&account.ID, &account.Email, &hash, &account.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Account{}, "", auth.ErrNotFound
	}
	if err != nil {
		return auth.Account{}, "", err
	}
	return account, hash, nil
}

func (s *AccountStore) UpdateAccountEmail(ctx context.Context, id, email string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `update accounts set email = $2 where id = $1`, id, email)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrConflict
		}
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *AccountStore) DeleteAccount(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from accounts where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}
