package auth

import (
	"fmt"
	"sort"
	"strings"
)

// Permission keys follow the form resource:action[:scope]. A key is globally
// unique and immutable once defined.
const (
	PermTicketViewAny   = "ticket:view:any"
	PermTicketViewOwn   = "ticket:view:own"
	PermTicketCreate    = "ticket:create"
	PermTicketUpdateAny = "ticket:update:any"
	PermTicketUpdateOwn = "ticket:update:own"
	PermTicketCloseAny  = "ticket:close:any"

	PermUserViewAny   = "user:view:any"
	PermUserViewOwn   = "user:view:own"
	PermUserUpdateAny = "user:update:any"

	PermSessionViewAny   = "session:view:any"
	PermSessionViewOwn   = "session:view:own"
	PermSessionCreate    = "session:create"
	PermSessionRevokeAny = "session:revoke:any"
	PermSessionRevokeOwn = "session:revoke:own"
)

// Scope values. An empty scope behaves as a global grant for the action.
const (
	ScopeAny = "any"
	ScopeOwn = "own"
)

// Definition describes one catalog entry. Method and Path are HTTP-surface
// metadata consumed only by the documentation endpoint, never by policy
// evaluation.
type Definition struct {
	Key         string `json:"key"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Scope       string `json:"scope,omitempty"`
	Description string `json:"description"`
	Method      string `json:"method,omitempty"`
	Path        string `json:"path,omitempty"`
}

// Catalog is the static permission registry used for seeding, documentation
// and key validation.
var Catalog = map[string]Definition{
	PermTicketViewAny:   {Key: PermTicketViewAny, Description: "View any ticket", Method: "GET", Path: "/v1/tickets/{id}"},
	PermTicketViewOwn:   {Key: PermTicketViewOwn, Description: "View own ticket", Method: "GET", Path: "/v1/tickets/{id}"},
	PermTicketCreate:    {Key: PermTicketCreate, Description: "Create ticket", Method: "POST", Path: "/v1/tickets"},
	PermTicketUpdateAny: {Key: PermTicketUpdateAny, Description: "Update any ticket", Method: "PATCH", Path: "/v1/tickets/{id}"},
	PermTicketUpdateOwn: {Key: PermTicketUpdateOwn, Description: "Update own ticket", Method: "PATCH", Path: "/v1/tickets/{id}"},
	PermTicketCloseAny:  {Key: PermTicketCloseAny, Description: "Close ticket", Method: "POST", Path: "/v1/tickets/{id}/status"},

	PermUserViewAny:   {Key: PermUserViewAny, Description: "View any user", Method: "GET", Path: "/v1/users/{id}"},
	PermUserViewOwn:   {Key: PermUserViewOwn, Description: "View own user record", Method: "GET", Path: "/v1/users/{id}"},
	PermUserUpdateAny: {Key: PermUserUpdateAny, Description: "Update user", Method: "PATCH", Path: "/v1/users/{id}"},

	PermSessionViewAny:   {Key: PermSessionViewAny, Description: "View any session", Method: "GET", Path: "/v1/sessions/{id}"},
	PermSessionViewOwn:   {Key: PermSessionViewOwn, Description: "View own session", Method: "GET", Path: "/v1/sessions/{id}"},
	PermSessionCreate:    {Key: PermSessionCreate, Description: "Create session", Method: "POST", Path: "/v1/auth/login"},
	PermSessionRevokeAny: {Key: PermSessionRevokeAny, Description: "Revoke any session", Method: "DELETE", Path: "/v1/sessions/{id}"},
	PermSessionRevokeOwn: {Key: PermSessionRevokeOwn, Description: "Revoke own session", Method: "DELETE", Path: "/v1/sessions/{id}"},
}

func init() {
	// Derive resource/action/scope from the key itself so the catalog cannot
	// drift from the key format.
	for key, def := range Catalog {
		resource, action, scope, err := ParseKey(key)
		if err != nil {
			panic(err)
		}
		def.Resource = resource
		def.Action = action
		def.Scope = scope
		Catalog[key] = def
	}
}

// ParseKey splits a permission key into resource, action and optional scope.
func ParseKey(key string) (resource, action, scope string, err error) {
	parts := strings.Split(key, ":")
	switch len(parts) {
	case 2:
		resource, action = parts[0], parts[1]
	case 3:
		resource, action, scope = parts[0], parts[1], parts[2]
		if scope != ScopeAny && scope != ScopeOwn {
			return "", "", "", fmt.Errorf("%w: unknown scope %q in permission key %q", ErrInvalidInput, scope, key)
		}
	default:
		return "", "", "", fmt.Errorf("%w: malformed permission key %q", ErrInvalidInput, key)
	}
	if resource == "" || action == "" {
		return "", "", "", fmt.Errorf("%w: malformed permission key %q", ErrInvalidInput, key)
	}
	return resource, action, scope, nil
}

// Lookup returns the catalog definition for key.
func Lookup(key string) (Definition, bool) {
	def, ok := Catalog[key]
	return def, ok
}

// CatalogKeys returns every defined permission key in sorted order.
func CatalogKeys() []string {
	keys := make([]string, 0, len(Catalog))
	for k := range Catalog {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
