package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"fleetops.io/internal/auth"
	"fleetops.io/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// orgHandler serves a request already scoped to one organization.
type orgHandler func(w http.ResponseWriter, r *http.Request, ac *auth.AuthorizationContext)

func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			unauthorized(w, r, err.Error())
			return
		}
		id, err := a.authn.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				unauthorized(w, r, "invalid or expired session")
				return
			}
			obs.Logger().Error("authentication failed",
				zap.String("request_id", RequestIDFromContext(r.Context())),
				zap.Error(err),
			)
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), id)))
	})
}

// inOrganization decodes the {org} token and builds the caller's
// authorization context for this request only.
func (a *API) inOrganization(next orgHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			unauthorized(w, r, "missing identity")
			return
		}
		orgID, err := a.decodeID(r.PathValue("org"))
		if err != nil {
			a.writeDomainError(w, r, err)
			return
		}
		ac, err := a.contexts.Build(r.Context(), &id, orgID)
		if err != nil {
			a.writeDomainError(w, r, err)
			return
		}
		next(w, r.WithContext(auth.ContextWith(r.Context(), ac)), ac)
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="fleetops"`)
	writeError(w, r, http.StatusUnauthorized, msg)
}
