package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fleetops.io/internal/auth"
)

var (
	_ auth.MembershipStore = (*Store)(nil)
	_ auth.RoleStore       = (*Store)(nil)
)

const roleColumns = "r.id, r.organization_id, r.name, coalesce(r.description, ''), r.created_at, r.last_updated_at"

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanRole(row interface{ Scan(...any) error }, r *auth.Role) error {
	return row.Scan(&r.ID, &r.OrganizationID, &r.Name, &r.Description, &r.CreatedAt, &r.LastUpdatedAt)
}

func (s *Store) Membership(ctx context.Context, organizationID, userID int64) (auth.Membership, error) {
	if s.db == nil {
		return auth.Membership{}, errNoDB
	}
	// Role and permissions are read from one snapshot so a concurrent
	// permission update is seen either entirely or not at all.
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return auth.Membership{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var m auth.Membership
	err = tx.QueryRowContext(ctx, `
		select m.organization_id, m.user_id, m.created_at, `+roleColumns+`
		from organization_members m
		join roles r on r.id = m.role_id and r.organization_id = m.organization_id
		where m.organization_id = $1 and m.user_id = $2
	`, organizationID, userID).Scan(
		&m.OrganizationID, &m.UserID, &m.CreatedAt,
		&m.Role.ID, &m.Role.OrganizationID, &m.Role.Name, &m.Role.Description, &m.Role.CreatedAt, &m.Role.LastUpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Membership{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Membership{}, err
	}
	if m.Role.Permissions, err = permissionKeys(ctx, tx, m.Role.ID); err != nil {
		return auth.Membership{}, err
	}
	if err := tx.Commit(); err != nil {
		return auth.Membership{}, err
	}
	return m, nil
}

func (s *Store) CreateRole(ctx context.Context, organizationID int64, name, description string, permissions []string) (auth.Role, error) {
	if s.db == nil {
		return auth.Role{}, errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.Role{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var role auth.Role
	err = scanRole(tx.QueryRowContext(ctx, `
		insert into roles as r (organization_id, name, description)
		values ($1, $2, $3)
		returning `+roleColumns, organizationID, name, nullIfEmpty(description)), &role)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.Role{}, fmt.Errorf("%w: role %q", auth.ErrAlreadyExists, name)
			case pgErrForeignKeyViolation:
				return auth.Role{}, fmt.Errorf("%w: organization %d", auth.ErrNotFound, organizationID)
			}
		}
		return auth.Role{}, err
	}
	if err := insertPermissions(ctx, tx, role.ID, permissions); err != nil {
		return auth.Role{}, err
	}
	if err := tx.Commit(); err != nil {
		return auth.Role{}, err
	}
	role.Permissions = permissions
	return role, nil
}

func (s *Store) GetRole(ctx context.Context, organizationID, roleID int64) (auth.Role, error) {
	if s.db == nil {
		return auth.Role{}, errNoDB
	}
	var role auth.Role
	err := scanRole(s.db.QueryRowContext(ctx, `
		select `+roleColumns+`
		from roles r
		where r.organization_id = $1 and r.id = $2
	`, organizationID, roleID), &role)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Role{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Role{}, err
	}
	if role.Permissions, err = permissionKeys(ctx, s.db, role.ID); err != nil {
		return auth.Role{}, err
	}
	return role, nil
}

// ReplaceRolePermissions bumps the role version conditionally and swaps its
// keys in the same transaction.
func (s *Store) ReplaceRolePermissions(ctx context.Context, organizationID, roleID int64, expected time.Time, permissions []string) (auth.Role, bool, error) {
	if s.db == nil {
		return auth.Role{}, false, errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.Role{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	var role auth.Role
	err = scanRole(tx.QueryRowContext(ctx, `
		update roles as r set last_updated_at = `+nextVersion+`
		where r.organization_id = $1 and r.id = $2 and r.last_updated_at = $3
		returning `+roleColumns, organizationID, roleID, expected), &role)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Role{}, false, nil
	}
	if err != nil {
		return auth.Role{}, false, err
	}
	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, roleID); err != nil {
		return auth.Role{}, false, err
	}
	if err := insertPermissions(ctx, tx, roleID, permissions); err != nil {
		return auth.Role{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return auth.Role{}, false, err
	}
	role.Permissions = permissions
	return role, true, nil
}

// AssignMember creates the membership or moves it to roleID.
func (s *Store) AssignMember(ctx context.Context, organizationID, userID, roleID int64) (auth.Member, error) {
	if s.db == nil {
		return auth.Member{}, errNoDB
	}
	m := auth.Member{}
	err := s.db.QueryRowContext(ctx, `
		insert into organization_members as m (organization_id, user_id, role_id)
		values ($1, $2, $3)
		on conflict (organization_id, user_id) do update
		set role_id = excluded.role_id,
		    last_updated_at = greatest(date_trunc('milliseconds', clock_timestamp()), m.last_updated_at + interval '1 millisecond')
		returning m.organization_id, m.user_id, m.role_id, m.created_at, m.last_updated_at
	`, organizationID, userID, roleID).Scan(&m.OrganizationID, &m.UserID, &m.RoleID, &m.CreatedAt, &m.LastUpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return auth.Member{}, fmt.Errorf("%w: user %d or role %d", auth.ErrNotFound, userID, roleID)
		}
		return auth.Member{}, err
	}
	return m, nil
}

func insertPermissions(ctx context.Context, tx *sql.Tx, roleID int64, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	q := psql.Insert("role_permissions").Columns("role_id", "permission_key")
	for _, k := range keys {
		q = q.Values(roleID, k)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

func permissionKeys(ctx context.Context, db queryer, roleID int64) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		select permission_key from role_permissions
		where role_id = $1
		order by permission_key
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
