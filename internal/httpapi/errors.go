package httpapi

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"fleetops.io/internal/auth"
	"fleetops.io/internal/authz"
	"fleetops.io/internal/catalog"
	"fleetops.io/internal/concurrency"
	"fleetops.io/internal/idcodec"
	"fleetops.io/internal/obs"
	"fleetops.io/internal/records"
)

type conflictResponse struct {
	Error         string `json:"error"`
	RequestID     string `json:"request_id,omitempty"`
	LastUpdatedAt string `json:"last_updated_at"`
	Current       any    `json:"current,omitempty"`
}

// writeDomainError maps service errors to responses. Denials never say which
// condition failed; configuration errors are logged and hidden.
func (a *API) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var ce *concurrency.ConflictError
	switch {
	case errors.As(err, &ce):
		writeJSON(w, http.StatusConflict, conflictResponse{
			Error:         "record was modified; reload and retry",
			RequestID:     RequestIDFromContext(r.Context()),
			LastUpdatedAt: concurrency.Format(ce.Current),
			Current:       a.presentState(ce.State),
		})
	case errors.Is(err, auth.ErrUnauthenticated):
		unauthorized(w, r, "invalid or expired session")
	case errors.Is(err, auth.ErrNoMembership):
		writeError(w, r, http.StatusForbidden, "no access to organization")
	case errors.Is(err, authz.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, idcodec.ErrInvalidToken):
		writeError(w, r, http.StatusBadRequest, "invalid identifier")
	case errors.Is(err, concurrency.ErrMalformedToken):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrConfiguration):
		obs.Logger().Error("permission configuration error",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	case errors.Is(err, records.ErrNotFound), errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	case errors.Is(err, records.ErrInvalidInput), errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusServiceUnavailable, "request cancelled")
	default:
		obs.Logger().Error("request failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func (a *API) presentState(state any) any {
	switch s := state.(type) {
	case auth.Role:
		v, err := a.roleView(s)
		if err != nil {
			return nil
		}
		return v
	default:
		return state
	}
}

func (a *API) decodeID(token string) (int64, error) {
	id, err := a.codec.Decode(token)
	if err != nil {
		obs.InvalidIDTokens.Inc()
		return 0, err
	}
	return id, nil
}
