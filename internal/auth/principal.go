package auth

import (
	"sort"
	"strings"
)

// Principal is the authenticated actor for one request. It is a projection
// built from a verified token payload (or freshly resolved role grants),
// never a stored entity: the permission set is always derived server-side,
// never trusted from client input.
type Principal struct {
	UserID         string
	OrganizationID string
	Roles          []string
	Permissions    map[string]struct{}
	SessionID      string
}

// NewPrincipal constructs a principal from a flattened permission list.
func NewPrincipal(userID, orgID string, roles, perms []string) Principal {
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		set[p] = struct{}{}
	}
	return Principal{
		UserID:         userID,
		OrganizationID: orgID,
		Roles:          dedupeStrings(roles),
		Permissions:    set,
	}
}

// HasPermission reports whether the principal holds the permission key.
func (p Principal) HasPermission(key string) bool {
	_, ok := p.Permissions[key]
	return ok
}

// PermissionList returns the permission set in sorted order, for embedding
// into access-token claims.
func (p Principal) PermissionList() []string {
	out := make([]string, 0, len(p.Permissions))
	for k := range p.Permissions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FlattenPermissions unions every permission granted by every role into a
// sorted, deduplicated key list. Pure and side-effect-free; an empty role
// list yields an empty set.
func FlattenPermissions(roles []RoleGrants) []string {
	set := make(map[string]struct{})
	for _, rg := range roles {
		for _, key := range rg.Permissions {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			set[key] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
