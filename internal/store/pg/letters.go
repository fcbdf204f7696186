package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"docket.org/internal/registry"
)

// LetterStore implements registry.LetterStore over the letters table.
// Tags are stored as jsonb; ref_no uniqueness is enforced by the table
// constraint and mapped to registry.ErrConflict.
type LetterStore struct {
	db *sql.DB
}

var _ registry.LetterStore = (*LetterStore)(nil)

const letterColumns = `
	id, ref_no, direction, status, confidentiality,
	date_received, date_on_letter,
	sender_name, coalesce(sender_org, ''), coalesce(recipient_department, ''),
	subject, coalesce(summary, ''), coalesce(category, ''), tags,
	coalesce(file_bucket, ''), coalesce(file_path, ''), coalesce(file_name, ''), coalesce(mime_type, ''),
	created_by, created_at, updated_at`

func (s *LetterStore) Insert(ctx context.Context, l *registry.Letter) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tags, err := marshalTags(l.Tags)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into letters (
			id, ref_no, direction, status, confidentiality,
			date_received, date_on_letter,
			sender_name, sender_org, recipient_department,
			subject, summary, category, tags,
			file_bucket, file_path, file_name, mime_type,
			created_by, created_at, updated_at
		) values (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17, $18,
			$19, $20, $21
		)
	`,
		l.ID, l.RefNo, string(l.Direction), string(l.Status), string(l.Confidentiality),
		l.DateReceived, nullTime(l.DateOnLetter),
		l.SenderName, nullIfEmpty(l.SenderOrg), nullIfEmpty(l.RecipientDepartment),
		l.Subject, nullIfEmpty(l.Summary), nullIfEmpty(l.Category), tags,
		nullIfEmpty(l.File.Bucket), nullIfEmpty(l.File.Path), nullIfEmpty(l.File.Name), nullIfEmpty(l.File.MimeType),
		l.CreatedBy, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return fmt.Errorf("%w: %s", registry.ErrConflict, l.RefNo)
			case pgErrForeignKeyViolation:
				return registry.ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (s *LetterStore) Find(ctx context.Context, id string) (registry.Letter, error) {
	if s.db == nil {
		return registry.Letter{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `select `+letterColumns+` from letters where id = $1`, id)
	return scanLetter(row.Scan)
}

func (s *LetterStore) Update(ctx context.Context, id string, patch registry.Patch) (registry.Letter, error) {
	if s.db == nil {
		return registry.Letter{}, errors.New("database connection unavailable")
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}
	if patch.Direction != nil {
		add("direction", string(*patch.Direction))
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.Confidentiality != nil {
		add("confidentiality", string(*patch.Confidentiality))
	}
	if patch.DateReceived != nil {
		add("date_received", *patch.DateReceived)
	}
	if patch.DateOnLetter != nil {
		add("date_on_letter", nullTime(patch.DateOnLetter))
	}
	if patch.SenderName != nil {
		add("sender_name", *patch.SenderName)
	}
	if patch.SenderOrg != nil {
		add("sender_org", nullIfEmpty(*patch.SenderOrg))
	}
	if patch.RecipientDepartment != nil {
		add("recipient_department", nullIfEmpty(*patch.RecipientDepartment))
	}
	if patch.Subject != nil {
		add("subject", *patch.Subject)
	}
	if patch.Summary != nil {
		add("summary", nullIfEmpty(*patch.Summary))
	}
	if patch.Category != nil {
		add("category", nullIfEmpty(*patch.Category))
	}
	if patch.Tags != nil {
		tags, err := marshalTags(patch.Tags)
		if err != nil {
			return registry.Letter{}, err
		}
		add("tags", tags)
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update letters set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return registry.Letter{}, registry.ErrConflict
			}
			return registry.Letter{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return registry.Letter{}, err
		}
		if aff == 0 {
			return registry.Letter{}, registry.ErrNotFound
		}
	}
	return s.Find(ctx, id)
}

func (s *LetterStore) UpdateFile(ctx context.Context, id string, f registry.FileRef) (registry.Letter, error) {
	if s.db == nil {
		return registry.Letter{}, errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update letters
		set file_bucket = $2, file_path = $3, file_name = $4, mime_type = $5, updated_at = now()
		where id = $1
	`, id, nullIfEmpty(f.Bucket), nullIfEmpty(f.Path), nullIfEmpty(f.Name), nullIfEmpty(f.MimeType))
	if err != nil {
		return registry.Letter{}, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return registry.Letter{}, err
	}
	if aff == 0 {
		return registry.Letter{}, registry.ErrNotFound
	}
	return s.Find(ctx, id)
}

func (s *LetterStore) Delete(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from letters where id = $1`, id)
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

func (s *LetterStore) List(ctx context.Context, f registry.Filter) ([]registry.Letter, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	var (
		where []string
		args  []any
		idx   = 1
	)
	cond := func(clause string, value any) {
		where = append(where, fmt.Sprintf(clause, idx))
		args = append(args, value)
		idx++
	}
	if f.Direction != "" {
		cond("direction = $%d", string(f.Direction))
	}
	if f.Status != "" {
		cond("status = $%d", string(f.Status))
	}
	if f.Confidentiality != "" {
		cond("confidentiality = $%d", string(f.Confidentiality))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, fmt.Sprintf("(subject ilike $%[1]d or sender_name ilike $%[1]d or ref_no ilike $%[1]d)", idx))
		args = append(args, "%"+q+"%")
		idx++
	}
	query := `select ` + letterColumns + ` from letters`
	if len(where) > 0 {
		query += " where " + strings.Join(where, " and ")
	}
	query += fmt.Sprintf(" order by created_at desc limit $%d", idx)
	args = append(args, f.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []registry.Letter
	for rows.Next() {
		l, err := scanLetter(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *LetterStore) RefNosWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select ref_no from letters where ref_no like $1 || '%'
	`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}

func marshalTags(tags []string) ([]byte, error) {
	if len(tags) == 0 {
		return []byte("[]"), nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	return data, nil
}

func scanLetter(scan func(...any) error) (registry.Letter, error) {
	var (
		l                       registry.Letter
		direction, status, conf string
		dateOnLetter            sql.NullTime
		rawTags                 []byte
	)
	err := scan(
		&l.ID, &l.RefNo, &direction, &status, &conf,
		&l.DateReceived, &dateOnLetter,
		&l.SenderName, &l.SenderOrg, &l.RecipientDepartment,
		&l.Subject, &l.Summary, &l.Category, &rawTags,
		&l.File.Bucket, &l.File.Path, &l.File.Name, &l.File.MimeType,
		&l.CreatedBy, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.Letter{}, registry.ErrNotFound
	}
	if err != nil {
		return registry.Letter{}, err
	}
	l.Direction = registry.Direction(direction)
	l.Status = registry.Status(status)
	l.Confidentiality = registry.Confidentiality(conf)
	if dateOnLetter.Valid {
		t := dateOnLetter.Time
		l.DateOnLetter = &t
	}
	if len(rawTags) > 0 {
		if err := json.Unmarshal(rawTags, &l.Tags); err != nil {
			return registry.Letter{}, fmt.Errorf("decode tags: %w", err)
		}
	}
	return l, nil
}
