package audit

import (
	"context"

	"go.uber.org/zap"

	"fleetops.io/internal/obs"
)

// Sink receives audit events in addition to the log.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// Recorder logs audit events and fans them out to sinks. Sink failures are
// logged and never fail the audited operation.
type Recorder struct {
	sinks []Sink
}

// NewRecorder returns a recorder publishing to sinks; nil sinks are skipped.
func NewRecorder(sinks ...Sink) *Recorder {
	r := &Recorder{}
	for _, s := range sinks {
		if s != nil {
			r.sinks = append(r.sinks, s)
		}
	}
	return r
}

// Record logs the event and publishes it. A nil Recorder only logs.
func (r *Recorder) Record(ctx context.Context, name string, fields map[string]any) {
	ev, err := NewEvent(ctx, name, fields)
	if err != nil {
		obs.Logger().Error("audit event rejected", zap.Error(err))
		return
	}
	logEvent(ev)
	if r == nil {
		return
	}
	for _, s := range r.sinks {
		if err := s.Publish(ctx, ev); err != nil {
			obs.Logger().Warn("audit sink publish failed",
				zap.String("event", ev.Name),
				zap.String("request_id", ev.RequestID),
				zap.Error(err),
			)
		}
	}
}
