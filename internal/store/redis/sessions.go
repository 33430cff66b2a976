// Package redis holds the Redis-backed session registry.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"fleetops.io/internal/auth"
)

const defaultSessionPrefix = "fleetops:sess"

var _ auth.SessionStore = (*SessionStore)(nil)

// SessionStore maps active session ids to their user. Expiry is delegated to
// the key TTL so an expired session simply disappears.
type SessionStore struct {
	client *red.Client
	prefix string
}

// NewSessionStore constructs a session registry under keyPrefix.
func NewSessionStore(client *red.Client, keyPrefix string) *SessionStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultSessionPrefix
	}
	return &SessionStore{client: client, prefix: prefix}
}

// Activate registers a session for userID until ttl elapses.
func (s *SessionStore) Activate(ctx context.Context, sessionID string, userID int64, ttl time.Duration) error {
	key := s.key(sessionID)
	if key == "" {
		return fmt.Errorf("session id is required")
	}
	if userID <= 0 {
		return fmt.Errorf("user id must be positive")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}
	if err := s.client.Set(ctx, key, strconv.FormatInt(userID, 10), ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Active reports the user bound to a live session.
func (s *SessionStore) Active(ctx context.Context, sessionID string) (int64, bool, error) {
	key := s.key(sessionID)
	if key == "" {
		return 0, false, nil
	}
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("redis get session: %w", err)
	}
	userID, err := strconv.ParseInt(value, 10, 64)
	if err != nil || userID <= 0 {
		return 0, false, fmt.Errorf("redis session %s holds malformed user id %q", sessionID, value)
	}
	return userID, true, nil
}

// Revoke ends a session immediately. Revoking an unknown session is not an error.
func (s *SessionStore) Revoke(ctx context.Context, sessionID string) error {
	key := s.key(sessionID)
	if key == "" {
		return fmt.Errorf("session id is required")
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

// Ping backs the readiness probe.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *SessionStore) key(sessionID string) string {
	trimmed := strings.TrimSpace(sessionID)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", s.prefix, trimmed)
}
