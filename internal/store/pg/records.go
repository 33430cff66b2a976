package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"fleetops.io/internal/records"
)

var _ records.Store = (*Store)(nil)

var recordMeta = []string{"id", "organization_id", "created_by_id", "created_at", "last_updated_at"}

func (s *Store) Get(ctx context.Context, spec records.Spec, organizationID, id int64) (records.Record, error) {
	if s.db == nil {
		return records.Record{}, errNoDB
	}
	cols := spec.ColumnNames()
	query, args, err := psql.Select(append(recordMeta, cols...)...).
		From(spec.Table).
		Where(sq.Eq{"organization_id": organizationID, "id": id}).
		ToSql()
	if err != nil {
		return records.Record{}, err
	}
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...), cols)
	if errors.Is(err, sql.ErrNoRows) {
		return records.Record{}, records.ErrNotFound
	}
	return rec, err
}

// Update writes fields only if the row still carries expected, in one statement.
func (s *Store) Update(ctx context.Context, spec records.Spec, organizationID, id int64, expected time.Time, fields map[string]any) (records.Record, bool, error) {
	if s.db == nil {
		return records.Record{}, false, errNoDB
	}
	cols := spec.ColumnNames()
	query, args, err := psql.Update(spec.Table).
		SetMap(fields).
		Set("last_updated_at", sq.Expr(nextVersion)).
		Where(sq.Eq{"organization_id": organizationID, "id": id, "last_updated_at": expected}).
		Suffix("RETURNING " + strings.Join(append(recordMeta, cols...), ", ")).
		ToSql()
	if err != nil {
		return records.Record{}, false, err
	}
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...), cols)
	if errors.Is(err, sql.ErrNoRows) {
		return records.Record{}, false, nil
	}
	if err != nil {
		return records.Record{}, false, fmt.Errorf("update %s: %w", spec.Table, err)
	}
	return rec, true, nil
}

func (s *Store) Delete(ctx context.Context, spec records.Spec, organizationID, id int64, expected time.Time) (bool, error) {
	if s.db == nil {
		return false, errNoDB
	}
	query, args, err := psql.Delete(spec.Table).
		Where(sq.Eq{"organization_id": organizationID, "id": id, "last_updated_at": expected}).
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", spec.Table, err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff == 1, nil
}

func scanRecord(row *sql.Row, cols []string) (records.Record, error) {
	var (
		rec   records.Record
		owner sql.NullInt64
	)
	values := make([]any, len(cols))
	dest := []any{&rec.ID, &rec.OrganizationID, &owner, &rec.CreatedAt, &rec.LastUpdatedAt}
	for i := range values {
		dest = append(dest, &values[i])
	}
	if err := row.Scan(dest...); err != nil {
		return records.Record{}, err
	}
	rec.OwnerID = owner.Int64
	rec.Fields = make(map[string]any, len(cols))
	for i, name := range cols {
		if b, ok := values[i].([]byte); ok {
			rec.Fields[name] = string(b)
			continue
		}
		rec.Fields[name] = values[i]
	}
	return rec, nil
}
