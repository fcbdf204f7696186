package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"docket.org/internal/auth"
)

// ProfileStore implements auth.ProfileStore over the profiles table.
type ProfileStore struct {
	db *sql.DB
}

var _ auth.ProfileStore = (*ProfileStore)(nil)

func (s *ProfileStore) Create(ctx context.Context, p *auth.Profile) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	err := s.db.QueryRowContext(ctx, `
		insert into profiles (id, full_name, role, department)
		values ($1, $2, $3, $4)
		returning created_at
	`, p.ID, p.FullName, string(p.Role), nullIfEmpty(p.Department)).Scan(&p.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.ErrConflict
			case pgErrForeignKeyViolation:
				return auth.ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (s *ProfileStore) Find(ctx context.Context, id string) (auth.Profile, error) {
	if s.db == nil {
		return auth.Profile{}, errors.New("database connection unavailable")
	}
	return s.scanOne(s.db.QueryRowContext(ctx, `
		select id, full_name, role, coalesce(department, ''), created_at
		from profiles where id = $1
	`, id))
}

func (s *ProfileStore) Update(ctx context.Context, id string, upd auth.ProfileUpdate) (auth.Profile, error) {
	if s.db == nil {
		return auth.Profile{}, errors.New("database connection unavailable")
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.FullName != nil {
		sets = append(sets, fmt.Sprintf("full_name = $%d", idx))
		args = append(args, *upd.FullName)
		idx++
	}
	if upd.Role != nil {
		sets = append(sets, fmt.Sprintf("role = $%d", idx))
		args = append(args, string(*upd.Role))
		idx++
	}
	if upd.Department != nil {
		sets = append(sets, fmt.Sprintf("department = $%d", idx))
		args = append(args, nullIfEmpty(*upd.Department))
		idx++
	}
	if len(sets) > 0 {
		query := fmt.Sprintf(`update profiles set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return auth.Profile{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return auth.Profile{}, err
		}
		if aff == 0 {
			return auth.Profile{}, auth.ErrNotFound
		}
	}
	return s.Find(ctx, id)
}

func (s *ProfileStore) Delete(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from profiles where id = $1`, id)
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

func (s *ProfileStore) Search(ctx context.Context, query string, limit int) ([]auth.Profile, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		select id, full_name, role, coalesce(department, ''), created_at
		from profiles
		where full_name ilike $1 or department ilike $1
		order by full_name
		limit $2
	`, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.Profile
	for rows.Next() {
		var (
			p    auth.Profile
			role string
		)
		if err := rows.Scan(&p.ID, &p.FullName, &role, &p.Department, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Role = auth.Role(role)
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ProfileStore) scanOne(row *sql.Row) (auth.Profile, error) {
	var (
		p    auth.Profile
		role string
	)
	err := row.Scan(&p.ID, &p.FullName, &role, &p.Department, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Profile{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Profile{}, err
	}
	p.Role = auth.Role(role)
	return p, nil
}
