package pg

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fleetops.io/internal/auth"
)

// Organization is a tenant row.
type Organization struct {
	ID            int64
	Name          string
	CreatedAt     time.Time
	LastUpdatedAt time.Time
}

// User is an account that can hold memberships.
type User struct {
	ID          int64
	Email       string
	DisplayName string
	CreatedAt   time.Time
}

func (s *Store) CreateOrganization(ctx context.Context, name string) (Organization, error) {
	if s.db == nil {
		return Organization{}, errNoDB
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Organization{}, fmt.Errorf("%w: organization name is required", auth.ErrInvalidInput)
	}
	var org Organization
	err := s.db.QueryRowContext(ctx, `
		insert into organizations (name)
		values ($1)
		returning id, name, created_at, last_updated_at
	`, name).Scan(&org.ID, &org.Name, &org.CreatedAt, &org.LastUpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return Organization{}, fmt.Errorf("%w: organization %q", auth.ErrAlreadyExists, name)
		}
		return Organization{}, err
	}
	return org, nil
}

// EnsureUser returns the user with email, creating it when absent.
func (s *Store) EnsureUser(ctx context.Context, email, displayName string) (User, error) {
	if s.db == nil {
		return User{}, errNoDB
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return User{}, fmt.Errorf("%w: email is required", auth.ErrInvalidInput)
	}
	var u User
	err := s.db.QueryRowContext(ctx, `
		insert into users (email, display_name)
		values ($1, $2)
		on conflict (email) do update set email = excluded.email
		returning id, email, display_name, created_at
	`, email, strings.TrimSpace(displayName)).Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return u, nil
}
