package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"fleetops.io/internal/audit"
	"fleetops.io/internal/auth"
	"fleetops.io/internal/authz"
	"fleetops.io/internal/catalog"
	"fleetops.io/internal/concurrency"
	"fleetops.io/internal/idcodec"
	"fleetops.io/internal/obs"
)

const (
	stageGuard   = "guard"
	stageStorage = "storage"
)

// Service exposes Get, Update and Delete over every kind returned by Kinds.
type Service struct {
	store  Store
	codec  *idcodec.Codec
	audit  *audit.Recorder
	tracer trace.Tracer
}

// NewService wires the store and codec. recorder may be nil.
func NewService(store Store, codec *idcodec.Codec, recorder *audit.Recorder) (*Service, error) {
	if store == nil {
		return nil, errors.New("record store is required")
	}
	if codec == nil {
		return nil, errors.New("id codec is required")
	}
	return &Service{
		store:  store,
		codec:  codec,
		audit:  recorder,
		tracer: otel.Tracer("fleetops.io/internal/records"),
	}, nil
}

// Get returns a record the caller may find.
func (s *Service) Get(ctx context.Context, ac *auth.AuthorizationContext, kind catalog.Kind, token string) (view View, err error) {
	ctx, span := s.start(ctx, "records.Get", kind)
	defer func() { finish(span, err) }()

	spec, id, err := s.resolve(ac, kind, token)
	if err != nil {
		return View{}, err
	}
	rec, err := s.load(ctx, spec, ac.OrganizationID, id)
	if err != nil {
		return View{}, err
	}
	if err := s.authorize(ctx, ac, spec, catalog.ActionFind, rec); err != nil {
		return View{}, err
	}
	return s.view(spec, rec)
}

// Update applies fields to a record. lastUpdatedAt is the token the client
// read; a missing or stale token yields a *concurrency.ConflictError whose
// State is the current View.
func (s *Service) Update(ctx context.Context, ac *auth.AuthorizationContext, kind catalog.Kind, token string, lastUpdatedAt *time.Time, fields map[string]any) (view View, err error) {
	ctx, span := s.start(ctx, "records.Update", kind)
	defer func() { finish(span, err) }()

	spec, id, err := s.resolve(ac, kind, token)
	if err != nil {
		return View{}, err
	}
	current, err := s.load(ctx, spec, ac.OrganizationID, id)
	if err != nil {
		return View{}, err
	}
	if err := s.authorize(ctx, ac, spec, catalog.ActionEdit, current); err != nil {
		return View{}, err
	}
	// Fields are validated only for callers allowed to edit, so column
	// names never leak to a denied caller.
	values, err := spec.Coerce(fields)
	if err != nil {
		return View{}, err
	}
	if err := concurrency.CheckExclusive(lastUpdatedAt, current.LastUpdatedAt); err != nil {
		return View{}, s.conflict(ctx, spec, current, stageGuard)
	}
	updated, ok, err := s.store.Update(ctx, spec, ac.OrganizationID, id, current.LastUpdatedAt, values)
	if err != nil {
		return View{}, fmt.Errorf("update %s: %w", spec.Kind, err)
	}
	if !ok {
		return View{}, s.reloadConflict(ctx, spec, ac.OrganizationID, id)
	}
	s.audit.Record(ctx, "records.updated", map[string]any{
		"kind":   string(spec.Kind),
		"id":     id,
		"fields": fieldNames(values),
	})
	return s.view(spec, updated)
}

// Delete removes a record under the same rules as Update.
func (s *Service) Delete(ctx context.Context, ac *auth.AuthorizationContext, kind catalog.Kind, token string, lastUpdatedAt *time.Time) (err error) {
	ctx, span := s.start(ctx, "records.Delete", kind)
	defer func() { finish(span, err) }()

	spec, id, err := s.resolve(ac, kind, token)
	if err != nil {
		return err
	}
	current, err := s.load(ctx, spec, ac.OrganizationID, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, ac, spec, catalog.ActionDelete, current); err != nil {
		return err
	}
	if err := concurrency.CheckExclusive(lastUpdatedAt, current.LastUpdatedAt); err != nil {
		return s.conflict(ctx, spec, current, stageGuard)
	}
	ok, err := s.store.Delete(ctx, spec, ac.OrganizationID, id, current.LastUpdatedAt)
	if err != nil {
		return fmt.Errorf("delete %s: %w", spec.Kind, err)
	}
	if !ok {
		return s.reloadConflict(ctx, spec, ac.OrganizationID, id)
	}
	s.audit.Record(ctx, "records.deleted", map[string]any{"kind": string(spec.Kind), "id": id})
	return nil
}

func (s *Service) resolve(ac *auth.AuthorizationContext, kind catalog.Kind, token string) (Spec, int64, error) {
	if ac == nil {
		return Spec{}, 0, auth.ErrUnauthenticated
	}
	spec, ok := Lookup(kind)
	if !ok {
		return Spec{}, 0, fmt.Errorf("%w: unknown record kind %q", ErrNotFound, kind)
	}
	id, err := s.codec.Decode(token)
	if err != nil {
		obs.InvalidIDTokens.Inc()
		return Spec{}, 0, err
	}
	return spec, id, nil
}

func (s *Service) load(ctx context.Context, spec Spec, organizationID, id int64) (Record, error) {
	rec, err := s.store.Get(ctx, spec, organizationID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("load %s: %w", spec.Kind, err)
	}
	return rec, nil
}

func (s *Service) authorize(ctx context.Context, ac *auth.AuthorizationContext, spec Spec, action catalog.Action, rec Record) error {
	resource := catalog.Static(spec.Kind)
	err := ac.Authorize(authz.Require(resource, action), ac.OwnerCheck(rec.OwnerID))
	switch {
	case err == nil:
		obs.AuthzDecisions.WithLabelValues(string(spec.Kind), authz.Allow.String()).Inc()
	case errors.Is(err, authz.ErrForbidden):
		obs.AuthzDecisions.WithLabelValues(string(spec.Kind), authz.Deny.String()).Inc()
		s.audit.Record(ctx, "authz.denied", map[string]any{
			"resource": resource.String(),
			"action":   string(action),
			"id":       rec.ID,
		})
	case errors.Is(err, catalog.ErrConfiguration):
		obs.Logger().Error("permission requirement misconfigured",
			zap.String("resource", resource.String()),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
	return err
}

func (s *Service) conflict(ctx context.Context, spec Spec, current Record, stage string) error {
	obs.WriteConflicts.WithLabelValues(string(spec.Kind), stage).Inc()
	s.audit.Record(ctx, "records.conflict", map[string]any{
		"kind":  string(spec.Kind),
		"id":    current.ID,
		"stage": stage,
	})
	ce := &concurrency.ConflictError{Current: concurrency.Normalize(current.LastUpdatedAt)}
	if v, err := s.view(spec, current); err == nil {
		ce.State = v
	}
	return ce
}

// reloadConflict handles a conditional write that matched no row: another
// writer got there first, so the client receives the state that won.
func (s *Service) reloadConflict(ctx context.Context, spec Spec, organizationID, id int64) error {
	latest, err := s.load(ctx, spec, organizationID, id)
	if err != nil {
		return err
	}
	return s.conflict(ctx, spec, latest, stageStorage)
}

func (s *Service) view(spec Spec, rec Record) (View, error) {
	token, err := s.codec.Encode(rec.ID)
	if err != nil {
		return View{}, fmt.Errorf("encode %s id: %w", spec.Kind, err)
	}
	v := View{
		ID:            token,
		Kind:          spec.Kind,
		Fields:        rec.Fields,
		CreatedAt:     concurrency.Format(rec.CreatedAt),
		LastUpdatedAt: concurrency.Format(rec.LastUpdatedAt),
	}
	if v.Fields == nil {
		v.Fields = map[string]any{}
	}
	if rec.OwnerID > 0 {
		if v.OwnerID, err = s.codec.Encode(rec.OwnerID); err != nil {
			return View{}, fmt.Errorf("encode owner id: %w", err)
		}
	}
	return v, nil
}

func (s *Service) start(ctx context.Context, name string, kind catalog.Kind) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("record.kind", string(kind))))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
