package audit

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"fleetops.io/internal/auth"
	"fleetops.io/internal/obs"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := obs.SetLogger(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func TestLogEvent(t *testing.T) {
	logs := observe(t)

	ctx := WithRequestID(context.Background(), "req-123")
	ctx = auth.ContextWith(ctx, &auth.AuthorizationContext{OrganizationID: 3, UserID: 42})

	if err := LogEvent(ctx, "audit.test", map[string]any{"foo": "bar"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	entries := logs.FilterMessage("audit").All()
	if len(entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["type"] != "audit" {
		t.Fatalf("unexpected type: %v", fields["type"])
	}
	if fields["event"] != "audit.test" {
		t.Fatalf("unexpected event: %v", fields["event"])
	}
	if fields["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", fields["request_id"])
	}
	if fields["user_id"] != int64(42) || fields["organization_id"] != int64(3) {
		t.Fatalf("unexpected caller: %v / %v", fields["user_id"], fields["organization_id"])
	}
	extra, ok := fields["fields"].(map[string]any)
	if !ok || extra["foo"] != "bar" {
		t.Fatalf("fields missing or incorrect: %v", fields["fields"])
	}
}

func TestLogEventFallsBackToIdentity(t *testing.T) {
	logs := observe(t)
	ctx := auth.ContextWithIdentity(context.Background(), auth.Identity{UserID: 9, SessionID: "s"})
	if err := LogEvent(ctx, "session.used", nil); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}
	fields := logs.All()[0].ContextMap()
	if fields["user_id"] != int64(9) || fields["organization_id"] != int64(0) {
		t.Fatalf("unexpected caller: %v", fields)
	}
}

func TestLogEventRequiresName(t *testing.T) {
	observe(t)
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatalf("expected error for blank event name")
	}
}
