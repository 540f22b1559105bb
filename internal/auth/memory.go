package auth

import (
	"context"
	"sync"
	"time"

	"opendesk.org/internal/ids"
)

var _ Store = (*InMemoryStore)(nil)

// InMemoryStore implements Store with in-process concurrency safety. Used by
// tests and DSN-less development runs; production uses the Postgres store.
type InMemoryStore struct {
	mu          sync.RWMutex
	orgs        map[string]*Organization
	users       map[string]*User
	roles       map[string]*Role
	perms       map[string]Definition
	rolePerms   map[string][]string     // roleID -> permission keys
	assignments map[string][]Assignment // userID -> assignments
	sessions    map[string]*Session
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		orgs:        make(map[string]*Organization),
		users:       make(map[string]*User),
		roles:       make(map[string]*Role),
		perms:       make(map[string]Definition),
		rolePerms:   make(map[string][]string),
		assignments: make(map[string][]Assignment),
		sessions:    make(map[string]*Session),
	}
}

func (s *InMemoryStore) Organizations() OrganizationStore { return (*memOrgStore)(s) }
func (s *InMemoryStore) Users() UserStore                 { return (*memUserStore)(s) }
func (s *InMemoryStore) Roles() RoleStore                 { return (*memRoleStore)(s) }
func (s *InMemoryStore) Permissions() PermissionStore     { return (*memPermStore)(s) }
func (s *InMemoryStore) Sessions() SessionStore           { return (*memSessionStore)(s) }

type memOrgStore InMemoryStore

func (s *memOrgStore) Create(ctx context.Context, org *Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if org.ID == "" {
		org.ID = ids.New()
	}
	org.CreatedAt = time.Now().UTC()
	org.UpdatedAt = org.CreatedAt
	cp := *org
	s.orgs[org.ID] = &cp
	return nil
}

func (s *memOrgStore) Find(ctx context.Context, id string) (*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *org
	return &cp, nil
}

func (s *memOrgStore) List(ctx context.Context) ([]*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Organization, 0, len(s.orgs))
	for _, org := range s.orgs {
		cp := *org
		out = append(out, &cp)
	}
	return out, nil
}

type memUserStore InMemoryStore

func (s *memUserStore) Create(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.OrganizationID == u.OrganizationID && existing.Email == u.Email {
			return ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memUserStore) Find(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUserStore) FindByEmail(ctx context.Context, organizationID, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.OrganizationID == organizationID && u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memUserStore) ListByOrg(ctx context.Context, orgID string) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*User
	for _, u := range s.users {
		if u.OrganizationID == orgID {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memUserStore) Update(ctx context.Context, userID string, upd UserUpdate) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.Status != nil {
		u.Status = *upd.Status
	}
	if upd.TeamID != nil {
		u.TeamID = *upd.TeamID
	}
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

type memRoleStore InMemoryStore

func (s *memRoleStore) Create(ctx context.Context, role *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if role.ID == "" {
		role.ID = ids.New()
	}
	role.CreatedAt = time.Now().UTC()
	role.UpdatedAt = role.CreatedAt
	cp := *role
	s.roles[role.ID] = &cp
	return nil
}

func (s *memRoleStore) Find(ctx context.Context, id string) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *role
	return &cp, nil
}

func (s *memRoleStore) ListByOrg(ctx context.Context, orgID string) ([]*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Role
	for _, role := range s.roles {
		if role.OrganizationID == orgID {
			cp := *role
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memRoleStore) Assign(ctx context.Context, assignment Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments[assignment.UserID] {
		if a.RoleID == assignment.RoleID {
			return nil
		}
	}
	assignment.CreatedAt = time.Now().UTC()
	s.assignments[assignment.UserID] = append(s.assignments[assignment.UserID], assignment)
	return nil
}

func (s *memRoleStore) RemoveAssignment(ctx context.Context, userID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.assignments[userID]
	for i, a := range list {
		if a.RoleID == roleID {
			s.assignments[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *memRoleStore) Assignments(ctx context.Context, userID string) ([]Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Assignment, len(s.assignments[userID]))
	copy(out, s.assignments[userID])
	return out, nil
}

func (s *memRoleStore) GrantsForUser(ctx context.Context, userID string) ([]RoleGrants, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []RoleGrants
	for _, a := range s.assignments[userID] {
		role, ok := s.roles[a.RoleID]
		if !ok {
			continue
		}
		keys := make([]string, len(s.rolePerms[a.RoleID]))
		copy(keys, s.rolePerms[a.RoleID])
		out = append(out, RoleGrants{Role: *role, Permissions: keys})
	}
	return out, nil
}

type memPermStore InMemoryStore

func (s *memPermStore) Ensure(ctx context.Context, defs []Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, def := range defs {
		s.perms[def.Key] = def
	}
	return nil
}

func (s *memPermStore) List(ctx context.Context) ([]Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Definition, 0, len(s.perms))
	for _, def := range s.perms {
		out = append(out, def)
	}
	return out, nil
}

func (s *memPermStore) SetForRole(ctx context.Context, roleID string, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]string, len(keys))
	copy(cp, keys)
	s.rolePerms[roleID] = cp
	return nil
}

func (s *memPermStore) KeysForRole(ctx context.Context, roleID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.rolePerms[roleID]))
	copy(out, s.rolePerms[roleID])
	return out, nil
}

type memSessionStore InMemoryStore

func (s *memSessionStore) Create(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session.ID == "" {
		session.ID = ids.New()
	}
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *memSessionStore) Find(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *session
	return &cp, nil
}

func (s *memSessionStore) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Session
	for _, session := range s.sessions {
		if session.UserID == userID {
			cp := *session
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Rotate performs the compare-and-swap under the store lock, mirroring the
// conditional UPDATE the Postgres store issues.
func (s *memSessionStore) Rotate(ctx context.Context, sessionID, oldHash, newHash string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return false, nil
	}
	if session.Revoked() || session.RefreshTokenHash != oldHash {
		return false, nil
	}
	session.RefreshTokenHash = newHash
	session.ExpiresAt = expiresAt
	return true, nil
}

func (s *memSessionStore) Revoke(ctx context.Context, sessionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok || session.Revoked() {
		return nil
	}
	t := at
	session.RevokedAt = &t
	return nil
}

func (s *memSessionStore) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, session := range s.sessions {
		if session.UserID == userID && !session.Revoked() {
			t := at
			session.RevokedAt = &t
			n++
		}
	}
	return n, nil
}
