package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthAndInfo(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK || body["service"] != serviceName || body["version"] != "test" {
		t.Fatalf("healthz: %d %v", resp.StatusCode, body)
	}
	resp, body = f.do(http.MethodGet, "/v1/info", "", nil)
	if resp.StatusCode != http.StatusOK || body["name"] != serviceName {
		t.Fatalf("info: %d %v", resp.StatusCode, body)
	}
	resp, body = f.do(http.MethodGet, "/nope", "", nil)
	if resp.StatusCode != http.StatusNotFound || body["request_id"] == nil {
		t.Fatalf("unknown route: %d %v", resp.StatusCode, body)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("security headers missing: %q", got)
	}
}

func TestReadyProbe(t *testing.T) {
	ok := ReadyProbe{DB: stubPinger{}, Sessions: stubPinger{}}
	if err := ok.Check(context.Background()); err != nil {
		t.Fatalf("healthy probe: %v", err)
	}
	bad := ReadyProbe{DB: stubPinger{errors.New("down")}, Sessions: stubPinger{errors.New("gone")}}
	err := bad.Check(context.Background())
	if err == nil || err.Error() != "database: down\nsessions: gone" {
		t.Fatalf("probe error %v", err)
	}

	a := &API{readyProbe: bad}
	rr := httptest.NewRecorder()
	a.Ready(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status %d", rr.Code)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(http.MethodDelete, "/v1/sessions/current", "tok-driver", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if len(f.revoker.revoked) != 1 || f.revoker.revoked[0] != "s-driver" {
		t.Fatalf("revoked %v", f.revoker.revoked)
	}
	if !f.captured.has("auth.session_revoked") {
		t.Fatal("logout not audited")
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
