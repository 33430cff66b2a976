package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"fleetops.io/internal/audit"
	"fleetops.io/internal/auth"
	"fleetops.io/internal/catalog"
	"fleetops.io/internal/idcodec"
	"fleetops.io/internal/records"
)

const (
	orgID        int64 = 1
	otherOrgID   int64 = 2
	ownerUser    int64 = 10
	dispatcher   int64 = 20
	driverUser   int64 = 30
	ownedByDisp  int64 = 100
	ownedByOwner int64 = 101
)

var sessionsByToken = map[string]auth.Identity{
	"tok-owner":      {UserID: ownerUser, SessionID: "s-owner"},
	"tok-dispatcher": {UserID: dispatcher, SessionID: "s-dispatcher"},
	"tok-driver":     {UserID: driverUser, SessionID: "s-driver"},
	"tok-stranger":   {UserID: 99, SessionID: "s-stranger"},
}

type fakeAuthn struct {
	err error
}

func (f fakeAuthn) Authenticate(_ context.Context, token string) (auth.Identity, error) {
	if f.err != nil {
		return auth.Identity{}, f.err
	}
	id, ok := sessionsByToken[token]
	if !ok {
		return auth.Identity{}, auth.ErrUnauthenticated
	}
	return id, nil
}

type fakeRevoker struct {
	mu      sync.Mutex
	revoked []string
}

func (f *fakeRevoker) Revoke(_ context.Context, sid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, sid)
	return nil
}

// directory serves memberships and roles from memory.
type directory struct {
	mu      sync.Mutex
	roles   map[int64]auth.Role
	members map[[2]int64]int64
	nextID  int64
	clock   time.Time
}

func newDirectory() *directory {
	return &directory{
		roles:   map[int64]auth.Role{},
		members: map[[2]int64]int64{},
		clock:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (d *directory) tick() time.Time {
	d.clock = d.clock.Add(time.Millisecond)
	return d.clock
}

func (d *directory) Membership(_ context.Context, org, user int64) (auth.Membership, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	roleID, ok := d.members[[2]int64{org, user}]
	if !ok {
		return auth.Membership{}, auth.ErrNotFound
	}
	return auth.Membership{OrganizationID: org, UserID: user, Role: d.roles[roleID]}, nil
}

func (d *directory) CreateRole(_ context.Context, org int64, name, description string, permissions []string) (auth.Role, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.roles {
		if r.OrganizationID == org && r.Name == name {
			return auth.Role{}, auth.ErrAlreadyExists
		}
	}
	d.nextID++
	ts := d.tick()
	r := auth.Role{ID: d.nextID, OrganizationID: org, Name: name, Description: description, Permissions: permissions, CreatedAt: ts, LastUpdatedAt: ts}
	d.roles[r.ID] = r
	return r, nil
}

func (d *directory) GetRole(_ context.Context, org, roleID int64) (auth.Role, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.roles[roleID]
	if !ok || r.OrganizationID != org {
		return auth.Role{}, auth.ErrNotFound
	}
	return r, nil
}

func (d *directory) ReplaceRolePermissions(_ context.Context, org, roleID int64, expected time.Time, permissions []string) (auth.Role, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.roles[roleID]
	if !ok || r.OrganizationID != org || !r.LastUpdatedAt.Equal(expected) {
		return auth.Role{}, false, nil
	}
	r.Permissions, r.LastUpdatedAt = permissions, d.tick()
	d.roles[roleID] = r
	return r, true, nil
}

func (d *directory) AssignMember(_ context.Context, org, user, roleID int64) (auth.Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[[2]int64{org, user}] = roleID
	ts := d.tick()
	return auth.Member{OrganizationID: org, UserID: user, RoleID: roleID, CreatedAt: ts, LastUpdatedAt: ts}, nil
}

func (d *directory) roleNamed(name string) auth.Role {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.roles {
		if r.Name == name {
			return r
		}
	}
	return auth.Role{}
}

type rowKey struct {
	table   string
	org, id int64
}

// recordTable mimics the conditional writes of the SQL store.
type recordTable struct {
	mu    sync.Mutex
	rows  map[rowKey]records.Record
	clock time.Time
}

func newRecordTable() *recordTable {
	return &recordTable{rows: map[rowKey]records.Record{}, clock: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (m *recordTable) put(kind catalog.Kind, rec records.Record) {
	spec, _ := records.Lookup(kind)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Millisecond)
	rec.CreatedAt, rec.LastUpdatedAt = m.clock, m.clock
	m.rows[rowKey{spec.Table, rec.OrganizationID, rec.ID}] = rec
}

func (m *recordTable) Get(_ context.Context, spec records.Spec, org, id int64) (records.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[rowKey{spec.Table, org, id}]
	if !ok {
		return records.Record{}, records.ErrNotFound
	}
	return rec, nil
}

func (m *recordTable) Update(_ context.Context, spec records.Spec, org, id int64, expected time.Time, fields map[string]any) (records.Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := rowKey{spec.Table, org, id}
	rec, ok := m.rows[k]
	if !ok || !rec.LastUpdatedAt.Equal(expected) {
		return records.Record{}, false, nil
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

func (m *recordTable) Delete(_ context.Context, spec records.Spec, org, id int64, expected time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := rowKey{spec.Table, org, id}
	rec, ok := m.rows[k]
	if !ok || !rec.LastUpdatedAt.Equal(expected) {
		return false, nil
	}
	delete(m.rows, k)
	return true, nil
}

type auditCapture struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *auditCapture) Publish(_ context.Context, ev audit.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *auditCapture) has(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ev := range c.events {
		if ev.Name == name {
			return true
		}
	}
	return false
}

type fixture struct {
	t        *testing.T
	srv      *httptest.Server
	codec    *idcodec.Codec
	dir      *directory
	table    *recordTable
	revoker  *fakeRevoker
	captured *auditCapture
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	codec, err := idcodec.New([]byte("httpapi-test-secret-0123456789"))
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	dir := newDirectory()
	rbac, err := auth.NewRBACService(dir, catalog.Default())
	if err != nil {
		t.Fatalf("rbac: %v", err)
	}
	if _, err := rbac.Provision(context.Background(), orgID, ownerUser); err != nil {
		t.Fatalf("provision: %v", err)
	}
	dir.members[[2]int64{orgID, dispatcher}] = dir.roleNamed("dispatcher").ID
	dir.members[[2]int64{orgID, driverUser}] = dir.roleNamed("driver").ID

	table := newRecordTable()
	table.put(catalog.KindVehicle, records.Record{ID: ownedByDisp, OrganizationID: orgID, OwnerID: dispatcher, Fields: map[string]any{"name": "Van 7", "status": "active"}})
	table.put(catalog.KindVehicle, records.Record{ID: ownedByOwner, OrganizationID: orgID, OwnerID: ownerUser, Fields: map[string]any{"name": "Truck 1"}})

	captured := &auditCapture{}
	recorder := audit.NewRecorder(captured)
	svc, err := records.NewService(table, codec, recorder)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	builder, err := auth.NewBuilder(dir, catalog.Default())
	if err != nil {
		t.Fatalf("builder: %v", err)
	}
	revoker := &fakeRevoker{}
	api, err := New(Deps{
		Authenticator: fakeAuthn{},
		Contexts:      builder,
		Records:       svc,
		RBAC:          rbac,
		Sessions:      revoker,
		Codec:         codec,
		Audit:         recorder,
		Version:       "test",
	}, WithRateLimit(1000, 1000))
	if err != nil {
		t.Fatalf("new api: %v", err)
	}
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return &fixture{t: t, srv: srv, codec: codec, dir: dir, table: table, revoker: revoker, captured: captured}
}

func (f *fixture) token(id int64) string {
	f.t.Helper()
	tok, err := f.codec.Encode(id)
	if err != nil {
		f.t.Fatalf("encode %d: %v", id, err)
	}
	return tok
}

func (f *fixture) do(method, path, bearer string, body any) (*http.Response, map[string]any) {
	f.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			f.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, f.srv.URL+path, bytes.NewReader(payload))
	if err != nil {
		f.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := f.srv.Client().Do(req)
	if err != nil {
		f.t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func (f *fixture) recordPath(org int64, kind string, id int64) string {
	return "/v1/organizations/" + f.token(org) + "/" + kind + "/" + f.token(id)
}
