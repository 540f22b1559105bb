package auth

import "strings"

// FieldPolicy gates partial updates per field. A field may require a stricter
// permission than the coarse "update" action; denial carries a field-specific
// code (FORBIDDEN_FIELD_<FIELD>) so callers can report exactly which
// attribute was rejected.
type FieldPolicy map[string]PermissionRule

// CanUpdateField reports whether the principal may write the named field of
// target. Unknown fields deny.
func (fp FieldPolicy) CanUpdateField(p Principal, field string, target Target) bool {
	rule, ok := fp[field]
	if !ok {
		return false
	}
	return rule.Allows(p, target)
}

// RequireField is CanUpdateField with the typed field-level outcome.
func (fp FieldPolicy) RequireField(p Principal, field string, target Target) error {
	if fp.CanUpdateField(p, field, target) {
		return nil
	}
	return FieldForbidden(field)
}

// FieldForbidden builds the denial for one field, e.g. "assignedTo" ->
// FORBIDDEN_FIELD_ASSIGNED_TO.
func FieldForbidden(field string) *Error {
	return &Error{Code: fieldCodePrefix + upperSnake(field)}
}

// UserFieldPolicy covers the sensitive user-record fields. All of them need
// the unscoped update grant; there is no own-scope escalation path to
// passwords or activation flags.
var UserFieldPolicy = FieldPolicy{
	"passwordHash": {Any: PermUserUpdateAny},
	"isActive":     {Any: PermUserUpdateAny},
	"teamId":       {Any: PermUserUpdateAny},
}

func upperSnake(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}
