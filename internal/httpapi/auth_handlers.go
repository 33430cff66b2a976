package httpapi

import (
	"net/http"

	"fleetops.io/internal/auth"
)

// handleLogout revokes the session the request was authenticated with.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if a.sessions == nil {
		writeError(w, r, http.StatusServiceUnavailable, "session registry unavailable")
		return
	}
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		unauthorized(w, r, "missing identity")
		return
	}
	if err := a.sessions.Revoke(r.Context(), id.SessionID); err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	a.audit.Record(r.Context(), "auth.session_revoked", map[string]any{"session_id": id.SessionID})
	w.WriteHeader(http.StatusNoContent)
}
