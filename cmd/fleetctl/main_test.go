package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
)

func setEnv(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	t.Setenv("FLEETOPS_IDS_SECRET", "fleetctl-ids-secret-0001")
	t.Setenv("FLEETOPS_SESSION_SECRET", "fleetctl-session-secret-01")
	t.Setenv("FLEETOPS_REDIS_ADDR", mr.Addr())
	return mr
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	setEnv(t)
	var out bytes.Buffer
	if err := run(context.Background(), []string{"encode", "4242"}, &out); err != nil {
		t.Fatalf("encode: %v", err)
	}
	token := strings.TrimSpace(out.String())

	out.Reset()
	if err := run(context.Background(), []string{"decode", token}, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "4242" {
		t.Fatalf("decoded %q", got)
	}
}

func TestEncodeRejectsBadInput(t *testing.T) {
	setEnv(t)
	for _, args := range [][]string{{"encode"}, {"encode", "-3"}, {"encode", "abc"}, {"decode", "garbage"}} {
		if err := run(context.Background(), args, &bytes.Buffer{}); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestSessionIssueAndRevoke(t *testing.T) {
	mr := setEnv(t)
	var out bytes.Buffer
	if err := run(context.Background(), []string{"session", "issue", "--user", "7", "--ttl", "1h"}, &out); err != nil {
		t.Fatalf("issue: %v", err)
	}
	var sid string
	for _, line := range strings.Split(out.String(), "\n") {
		if v, ok := strings.CutPrefix(line, "session_id="); ok {
			sid = v
		}
	}
	if sid == "" {
		t.Fatalf("no session id in %q", out.String())
	}
	if len(mr.Keys()) != 1 {
		t.Fatalf("expected one session key, got %v", mr.Keys())
	}

	if err := run(context.Background(), []string{"session", "revoke", sid}, &bytes.Buffer{}); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("session still present: %v", mr.Keys())
	}
}

func TestUnknownCommand(t *testing.T) {
	if err := run(context.Background(), []string{"frobnicate"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error")
	}
	if err := run(context.Background(), nil, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for missing command")
	}
}
