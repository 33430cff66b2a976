package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRequestID returns a lexicographically sortable identifier for request
// correlation in logs and error bodies.
func NewRequestID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// IsRequestID reports whether s is a well-formed request identifier, so
// client-supplied X-Request-ID values can be accepted or replaced.
func IsRequestID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
