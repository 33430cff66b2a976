package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"fleetops.io/internal/audit"
	"fleetops.io/internal/auth"
	"fleetops.io/internal/idcodec"
	"fleetops.io/internal/obs"
	"fleetops.io/internal/records"
)

const serviceName = "fleetops-api"

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe pings every configured dependency.
type ReadyProbe struct {
	DB       Pinger
	Sessions Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	var errs []error
	if rp.DB != nil {
		if err := rp.DB.Ping(ctx); err != nil {
			errs = append(errs, errors.New("database: "+err.Error()))
		}
	}
	if rp.Sessions != nil {
		if err := rp.Sessions.Ping(ctx); err != nil {
			errs = append(errs, errors.New("sessions: "+err.Error()))
		}
	}
	return errors.Join(errs...)
}

type readinessChecker interface {
	Check(ctx context.Context) error
}

// Authenticator resolves a bearer token to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Identity, error)
}

// SessionRevoker ends sessions on logout.
type SessionRevoker interface {
	Revoke(ctx context.Context, sessionID string) error
}

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Authenticator Authenticator
	Contexts      *auth.Builder
	Records       *records.Service
	RBAC          *auth.RBACService
	Sessions      SessionRevoker
	Codec         *idcodec.Codec
	Audit         *audit.Recorder
	Ready         readinessChecker
	Version       string
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe readinessChecker
	version    string

	authn    Authenticator
	contexts *auth.Builder
	records  *records.Service
	rbac     *auth.RBACService
	sessions SessionRevoker
	codec    *idcodec.Codec
	audit    *audit.Recorder

	rateBurst    int
	ratePerSec   float64
	maxBodyBytes int64
}

// Option tunes API limits.
type Option func(*API)

// WithRateLimit sets the per-client token bucket.
func WithRateLimit(burst int, perSecond float64) Option {
	return func(a *API) {
		if burst > 0 && perSecond > 0 {
			a.rateBurst, a.ratePerSec = burst, perSecond
		}
	}
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxBodyBytes = n
		}
	}
}

func New(d Deps, opts ...Option) (*API, error) {
	if d.Authenticator == nil || d.Contexts == nil || d.Records == nil || d.RBAC == nil || d.Codec == nil {
		return nil, errors.New("httpapi: authenticator, context builder, records, rbac and codec are required")
	}
	ready := d.Ready
	if ready == nil {
		ready = ReadyProbe{}
	}
	a := &API{
		mux:          http.NewServeMux(),
		readyProbe:   ready,
		version:      d.Version,
		authn:        d.Authenticator,
		contexts:     d.Contexts,
		records:      d.Records,
		rbac:         d.RBAC,
		sessions:     d.Sessions,
		codec:        d.Codec,
		audit:        d.Audit,
		rateBurst:    40,
		ratePerSec:   20,
		maxBodyBytes: 1 << 20,
	}
	for _, opt := range opts {
		opt(a)
	}

	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.Handle("DELETE /v1/sessions/current", a.withAuth(http.HandlerFunc(a.handleLogout)))

	a.mux.Handle("GET /v1/organizations/{org}/permissions", a.withAuth(a.inOrganization(a.handlePermissions)))
	a.mux.Handle("POST /v1/organizations/{org}/roles", a.withAuth(a.inOrganization(a.handleCreateRole)))
	a.mux.Handle("PUT /v1/organizations/{org}/roles/{role}/permissions", a.withAuth(a.inOrganization(a.handleSetRolePermissions)))
	a.mux.Handle("PUT /v1/organizations/{org}/members/{user}", a.withAuth(a.inOrganization(a.handleAssignMember)))

	a.mux.Handle("GET /v1/organizations/{org}/{kind}/{id}", a.withAuth(a.inOrganization(a.handleGetRecord)))
	a.mux.Handle("PATCH /v1/organizations/{org}/{kind}/{id}", a.withAuth(a.inOrganization(a.handleUpdateRecord)))
	a.mux.Handle("DELETE /v1/organizations/{org}/{kind}/{id}", a.withAuth(a.inOrganization(a.handleDeleteRecord)))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	return a, nil
}

// Handler returns the mux wrapped in the middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}
