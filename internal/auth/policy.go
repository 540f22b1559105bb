package auth

import "fmt"

// Target is a resource instance evaluated under "own" scope. A principal owns
// a target when they created it or are assigned to it.
type Target interface {
	CreatedByID() string
	AssignedToID() string
}

// PermissionRule declares which keys grant an action. Any is checked first
// and short-circuits; Own is evaluated only as a fallback and never overrides
// a missing Any grant for non-owned resources.
type PermissionRule struct {
	Any string
	Own string
}

// PermissionMatrix maps an action name to its rule for one resource kind.
type PermissionMatrix map[string]PermissionRule

// Allows evaluates a single rule against a principal and optional target.
// An Own-only rule with a nil target denies rather than failing.
func (r PermissionRule) Allows(p Principal, target Target) bool {
	if r.Any != "" && p.HasPermission(r.Any) {
		return true
	}
	if r.Own != "" && p.HasPermission(r.Own) && target != nil {
		if target.CreatedByID() == p.UserID || target.AssignedToID() == p.UserID {
			return true
		}
	}
	return false
}

// Can reports whether the principal may perform action on target under this
// matrix. An action missing from the matrix denies.
func (m PermissionMatrix) Can(p Principal, action string, target Target) bool {
	rule, ok := m[action]
	if !ok {
		return false
	}
	return rule.Allows(p, target)
}

// Require is Can with a typed FORBIDDEN outcome for callers that propagate
// errors instead of booleans.
func (m PermissionMatrix) Require(p Principal, action string, target Target) error {
	if m.Can(p, action, target) {
		return nil
	}
	return &Error{Code: CodeForbidden, Message: fmt.Sprintf("missing permission for action %q", action)}
}

// SessionPermissionMatrix gates session operations. Revoking or viewing a
// session under "own" scope is limited to the session's user.
var SessionPermissionMatrix = PermissionMatrix{
	"view":   {Any: PermSessionViewAny, Own: PermSessionViewOwn},
	"create": {Any: PermSessionCreate},
	"revoke": {Any: PermSessionRevokeAny, Own: PermSessionRevokeOwn},
}

// UserPermissionMatrix gates user-record operations. Update has no own rule:
// self-service profile edits go through dedicated flows, not the generic
// update action.
var UserPermissionMatrix = PermissionMatrix{
	"view":   {Any: PermUserViewAny, Own: PermUserViewOwn},
	"update": {Any: PermUserUpdateAny},
}
