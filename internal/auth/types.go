package auth

import "time"

// Identity is the authenticated caller as established by the session layer.
type Identity struct {
	UserID    int64
	SessionID string
}

// Role groups permission keys inside one organization.
type Role struct {
	ID             int64     `json:"-"`
	OrganizationID int64     `json:"-"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Permissions    []string  `json:"permissions"`
	CreatedAt      time.Time `json:"created_at"`
	LastUpdatedAt  time.Time `json:"last_updated_at"`
}

// Membership binds a user to exactly one role in an organization.
type Membership struct {
	OrganizationID int64
	UserID         int64
	Role           Role
	CreatedAt      time.Time
}

// Member is the stored form of a membership.
type Member struct {
	OrganizationID int64     `json:"-"`
	UserID         int64     `json:"-"`
	RoleID         int64     `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	LastUpdatedAt  time.Time `json:"last_updated_at"`
}
