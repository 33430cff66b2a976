package auth

import (
	"context"
	"time"
)

type fakeMembers struct {
	memberships map[[2]int64]Membership
	err         error
	calls       int
}

func (f *fakeMembers) Membership(ctx context.Context, organizationID, userID int64) (Membership, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return Membership{}, err
	}
	if f.err != nil {
		return Membership{}, f.err
	}
	m, ok := f.memberships[[2]int64{organizationID, userID}]
	if !ok {
		return Membership{}, ErrNotFound
	}
	return m, nil
}

type fakeRoles struct {
	roles   map[int64]Role
	members []Member
	nextID  int64
	now     time.Time
	// raceOnReplace simulates a concurrent writer landing between the
	// guard check and the conditional write.
	raceOnReplace bool
}

func newFakeRoles() *fakeRoles {
	return &fakeRoles{roles: map[int64]Role{}, now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (f *fakeRoles) tick() time.Time {
	f.now = f.now.Add(time.Second)
	return f.now
}

func (f *fakeRoles) CreateRole(_ context.Context, organizationID int64, name, description string, permissions []string) (Role, error) {
	f.nextID++
	ts := f.tick()
	r := Role{ID: f.nextID, OrganizationID: organizationID, Name: name, Description: description, Permissions: permissions, CreatedAt: ts, LastUpdatedAt: ts}
	f.roles[r.ID] = r
	return r, nil
}

func (f *fakeRoles) GetRole(_ context.Context, organizationID, roleID int64) (Role, error) {
	r, ok := f.roles[roleID]
	if !ok || r.OrganizationID != organizationID {
		return Role{}, ErrNotFound
	}
	return r, nil
}

func (f *fakeRoles) ReplaceRolePermissions(_ context.Context, organizationID, roleID int64, expected time.Time, permissions []string) (Role, bool, error) {
	r, ok := f.roles[roleID]
	if !ok || r.OrganizationID != organizationID {
		return Role{}, false, nil
	}
	if f.raceOnReplace {
		r.LastUpdatedAt = f.tick()
		f.roles[roleID] = r
		f.raceOnReplace = false
	}
	if !r.LastUpdatedAt.Equal(expected) {
		return Role{}, false, nil
	}
	r.Permissions = permissions
	r.LastUpdatedAt = f.tick()
	f.roles[roleID] = r
	return r, true, nil
}

func (f *fakeRoles) AssignMember(_ context.Context, organizationID, userID, roleID int64) (Member, error) {
	ts := f.tick()
	m := Member{OrganizationID: organizationID, UserID: userID, RoleID: roleID, CreatedAt: ts, LastUpdatedAt: ts}
	f.members = append(f.members, m)
	return m, nil
}

type fakeSessions struct {
	active map[string]int64
	err    error
}

func (f *fakeSessions) Active(_ context.Context, sessionID string) (int64, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	uid, ok := f.active[sessionID]
	return uid, ok, nil
}
