package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"fleetops.io/internal/auth"
	"fleetops.io/internal/catalog"
	"fleetops.io/internal/concurrency"
)

type updateRecordRequest struct {
	LastUpdatedAt string         `json:"last_updated_at"`
	Fields        map[string]any `json:"fields"`
}

type deleteRecordRequest struct {
	LastUpdatedAt string `json:"last_updated_at"`
}

func (a *API) handleGetRecord(w http.ResponseWriter, r *http.Request, ac *auth.AuthorizationContext) {
	view, err := a.records.Get(r.Context(), ac, catalog.Kind(r.PathValue("kind")), r.PathValue("id"))
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleUpdateRecord(w http.ResponseWriter, r *http.Request, ac *auth.AuthorizationContext) {
	var req updateRecordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	token, err := concurrency.Parse(req.LastUpdatedAt)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	view, err := a.records.Update(r.Context(), ac, catalog.Kind(r.PathValue("kind")), r.PathValue("id"), token, req.Fields)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleDeleteRecord(w http.ResponseWriter, r *http.Request, ac *auth.AuthorizationContext) {
	var req deleteRecordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	token, err := concurrency.Parse(req.LastUpdatedAt)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	if err := a.records.Delete(r.Context(), ac, catalog.Kind(r.PathValue("kind")), r.PathValue("id"), token); err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeJSON reads exactly one JSON object. Numbers stay json.Number so
// integer fields are not rounded through float64.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
