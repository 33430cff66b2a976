package records

import (
	"context"
	"sync"
	"time"
)

type memKey struct {
	table string
	org   int64
	id    int64
}

// memStore mimics the conditional writes of the SQL store.
type memStore struct {
	mu    sync.Mutex
	rows  map[memKey]Record
	clock time.Time
	gets  int
	// beforeWrite runs inside Update/Delete ahead of the condition check.
	beforeWrite func()
}

func newMemStore() *memStore {
	return &memStore{rows: map[memKey]Record{}, clock: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
}

func (m *memStore) put(spec Spec, rec Record) Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Millisecond)
	rec.CreatedAt, rec.LastUpdatedAt = m.clock, m.clock
	m.rows[memKey{spec.Table, rec.OrganizationID, rec.ID}] = rec
	return rec
}

func (m *memStore) Get(_ context.Context, spec Spec, org, id int64) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	rec, ok := m.rows[memKey{spec.Table, org, id}]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *memStore) Update(_ context.Context, spec Spec, org, id int64, expected time.Time, fields map[string]any) (Record, bool, error) {
	if m.beforeWrite != nil {
		m.beforeWrite()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey{spec.Table, org, id}
	rec, ok := m.rows[k]
	if !ok || !rec.LastUpdatedAt.Equal(expected) {
		return Record{}, false, nil
	}
	merged := make(map[string]any, len(rec.Fields)+len(fields))
	for name, v := range rec.Fields {
		merged[name] = v
	}
	for name, v := range fields {
		merged[name] = v
	}
	m.clock = m.clock.Add(time.Millisecond)
	rec.Fields, rec.LastUpdatedAt = merged, m.clock
	m.rows[k] = rec
	return rec, true, nil
}

func (m *memStore) Delete(_ context.Context, spec Spec, org, id int64, expected time.Time) (bool, error) {
	if m.beforeWrite != nil {
		m.beforeWrite()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey{spec.Table, org, id}
	rec, ok := m.rows[k]
	if !ok || !rec.LastUpdatedAt.Equal(expected) {
		return false, nil
	}
	delete(m.rows, k)
	return true, nil
}
