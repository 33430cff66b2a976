package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"fleetops.io/internal/auth"
	"fleetops.io/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Event is a single audit record.
type Event struct {
	Name           string         `json:"event"`
	OccurredAt     time.Time      `json:"ts"`
	RequestID      string         `json:"request_id,omitempty"`
	UserID         int64          `json:"user_id,omitempty"`
	OrganizationID int64          `json:"organization_id,omitempty"`
	Fields         map[string]any `json:"fields"`
}

// NewEvent builds an event enriched with request and caller context.
func NewEvent(ctx context.Context, name string, fields map[string]any) (Event, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Event{}, errors.New("event name is required")
	}
	ev := Event{
		Name:       name,
		OccurredAt: time.Now().UTC(),
		RequestID:  RequestIDFromContext(ctx),
		Fields:     make(map[string]any, len(fields)),
	}
	if ac, ok := auth.FromContext(ctx); ok {
		ev.UserID = ac.UserID
		ev.OrganizationID = ac.OrganizationID
	} else if id, ok := auth.IdentityFromContext(ctx); ok {
		ev.UserID = id.UserID
	}
	for k, v := range fields {
		ev.Fields[k] = v
	}
	return ev, nil
}

// LogEvent writes an audit log entry enriched with request and user context.
func LogEvent(ctx context.Context, name string, fields map[string]any) error {
	ev, err := NewEvent(ctx, name, fields)
	if err != nil {
		return err
	}
	logEvent(ev)
	return nil
}

func logEvent(ev Event) {
	obs.Logger().Info("audit",
		zap.String("type", "audit"),
		zap.String("event", ev.Name),
		zap.String("request_id", ev.RequestID),
		zap.Int64("user_id", ev.UserID),
		zap.Int64("organization_id", ev.OrganizationID),
		zap.Any("fields", ev.Fields),
	)
}
