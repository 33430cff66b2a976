// Package records is the mutation entry point for ownable fleet records. Every
// read and write decodes the client's id token, authorizes the caller against
// the record's owner and, for writes, applies the optimistic concurrency check
// followed by a conditional write.
package records

import (
	"context"
	"errors"
	"time"

	"fleetops.io/internal/catalog"
)

var (
	ErrNotFound     = errors.New("records: not found")
	ErrInvalidInput = errors.New("records: invalid input")
)

// Record is the stored form of an ownable record.
type Record struct {
	ID             int64
	OrganizationID int64
	OwnerID        int64
	Fields         map[string]any
	CreatedAt      time.Time
	LastUpdatedAt  time.Time
}

// View is what clients see: ids are tokens and last_updated_at is the
// concurrency token to send back on the next write.
type View struct {
	ID            string         `json:"id"`
	Kind          catalog.Kind   `json:"kind"`
	OwnerID       string         `json:"owner_id,omitempty"`
	Fields        map[string]any `json:"fields"`
	CreatedAt     string         `json:"created_at"`
	LastUpdatedAt string         `json:"last_updated_at"`
}

// Store persists records. Update and Delete are conditional on
// last_updated_at still equal to expected and report false when no row
// matched; they must never write unconditionally.
type Store interface {
	Get(ctx context.Context, spec Spec, organizationID, id int64) (Record, error)
	Update(ctx context.Context, spec Spec, organizationID, id int64, expected time.Time, fields map[string]any) (Record, bool, error)
	Delete(ctx context.Context, spec Spec, organizationID, id int64, expected time.Time) (bool, error)
}
