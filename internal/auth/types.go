package auth

import "time"

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// Organization is a helpdesk tenant. Every user, role, ticket and session
// belongs to exactly one organization.
type Organization struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// User is a helpdesk account (end user, agent or admin).
type User struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Status         string    `json:"status"`
	TeamID         string    `json:"team_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreatedByID implements the policy Target: a user record is owned by the
// user it describes.
func (u *User) CreatedByID() string { return u.ID }

// AssignedToID always returns empty; user records have no assignee.
func (u *User) AssignedToID() string { return "" }

// Role groups permissions within an organization.
type Role struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RoleGrants is a role together with its granted permission keys, the shape
// the resolver flattens before any policy logic runs.
type RoleGrants struct {
	Role        Role
	Permissions []string
}

// Assignment gives a user a role.
type Assignment struct {
	UserID         string    `json:"user_id"`
	RoleID         string    `json:"role_id"`
	OrganizationID string    `json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Session represents one authenticated login. Only the sha256 hash of the
// refresh secret is stored; at most one valid hash exists per session and
// rotation replaces it atomically.
type Session struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	OrganizationID   string     `json:"organization_id"`
	RefreshTokenHash string     `json:"-"`
	UserAgent        string     `json:"user_agent,omitempty"`
	IPAddress        string     `json:"ip_address,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
}

// Revoked reports whether the session was explicitly revoked.
func (s *Session) Revoked() bool { return s.RevokedAt != nil }

// SessionMeta is informational client metadata captured at login.
type SessionMeta struct {
	UserAgent string
	IPAddress string
}

// CreatedByID implements the policy Target for "own" scoped session rules:
// a session is owned by the user it authenticates.
func (s *Session) CreatedByID() string { return s.UserID }

// AssignedToID always returns empty; sessions have no assignee.
func (s *Session) AssignedToID() string { return "" }
