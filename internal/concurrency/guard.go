// Package concurrency implements the optimistic concurrency check applied to
// every record mutation. The check is advisory: the write itself must be a
// conditional update on the same token so the database closes the window
// between check and write.
package concurrency

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Precision is the granularity at which the storage layer persists
// last_updated_at. Tokens are compared after truncation to it.
const Precision = time.Millisecond

// ErrConflict reports a stale write: the record changed after the client's snapshot.
var ErrConflict = errors.New("record was modified concurrently")

// ErrMalformedToken reports a concurrency token that could not be parsed.
var ErrMalformedToken = errors.New("malformed last_updated_at")

// ConflictError carries the current token (and optionally the current state)
// of the record so the client can reload and retry.
type ConflictError struct {
	Current time.Time
	State   any
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s (current last_updated_at %s)", ErrConflict, Format(e.Current))
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// Normalize brings a timestamp to the storage precision in UTC.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(Precision)
}

// CheckExclusive allows a mutation only when the client presented a token
// equal to the current one. A missing token is a conflict.
func CheckExclusive(client *time.Time, current time.Time) error {
	if client == nil || client.IsZero() {
		return &ConflictError{Current: Normalize(current)}
	}
	if !Normalize(*client).Equal(Normalize(current)) {
		return &ConflictError{Current: Normalize(current)}
	}
	return nil
}

// Format renders a token for transport.
func Format(t time.Time) string {
	return Normalize(t).Format(time.RFC3339Nano)
}

// Parse reads a token from transport. An empty value yields nil, which
// CheckExclusive treats as missing.
func Parse(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedToken, raw)
	}
	t = Normalize(t)
	return &t, nil
}
