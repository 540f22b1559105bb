package auth

import (
	"context"
	"time"
)

// Store describes the persistence operations the auth subsystem consumes.
// The engine owns no persistence logic itself; implementations live in
// postgres.go and memory.go.
type Store interface {
	Organizations() OrganizationStore
	Users() UserStore
	Roles() RoleStore
	Permissions() PermissionStore
	Sessions() SessionStore
}

// OrganizationStore manages tenants.
type OrganizationStore interface {
	Create(ctx context.Context, org *Organization) error
	Find(ctx context.Context, id string) (*Organization, error)
	List(ctx context.Context) ([]*Organization, error)
}

// UserUpdate carries the mutable user fields; nil means leave unchanged.
type UserUpdate struct {
	Email        *string
	PasswordHash *string
	Status       *string
	TeamID       *string
}

// UserStore manages accounts.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, organizationID, email string) (*User, error)
	ListByOrg(ctx context.Context, orgID string) ([]*User, error)
	Update(ctx context.Context, userID string, upd UserUpdate) (*User, error)
}

// RoleStore manages roles and role assignments.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	Find(ctx context.Context, id string) (*Role, error)
	ListByOrg(ctx context.Context, orgID string) ([]*Role, error)
	Assign(ctx context.Context, assignment Assignment) error
	RemoveAssignment(ctx context.Context, userID, roleID string) error
	Assignments(ctx context.Context, userID string) ([]Assignment, error)

	// GrantsForUser returns every role the user holds together with the
	// role's granted permission keys, the input shape of FlattenPermissions.
	GrantsForUser(ctx context.Context, userID string) ([]RoleGrants, error)
}

// PermissionStore manages the persisted permission catalog.
type PermissionStore interface {
	Ensure(ctx context.Context, defs []Definition) error
	List(ctx context.Context) ([]Definition, error)
	SetForRole(ctx context.Context, roleID string, keys []string) error
	KeysForRole(ctx context.Context, roleID string) ([]string, error)
}

// SessionStore manages session rows.
//
// Rotate is the single concurrency-sensitive operation in the engine: it must
// be a conditional update (update-if-hash-matches) so two concurrent refreshes
// of the same session cannot both succeed. It reports whether a row was
// updated; false means the stored hash no longer matches.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Find(ctx context.Context, id string) (*Session, error)
	ListByUser(ctx context.Context, userID string) ([]*Session, error)
	Rotate(ctx context.Context, sessionID, oldHash, newHash string, expiresAt time.Time) (bool, error)

	// Revoke marks one session revoked; revoking an already-revoked session
	// is a no-op.
	Revoke(ctx context.Context, sessionID string, at time.Time) error

	// RevokeAllForUser revokes every non-revoked session of the user in one
	// bulk operation and returns the number of sessions affected.
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error)
}
