package ticket

import "opendesk.org/internal/auth"

// Actions gated by the permission matrix.
const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionClose  = "close"
)

// Fields gated by the field policy.
const (
	FieldPriority   = "priority"
	FieldAssignedTo = "assignedTo"
)

// PermissionMatrix maps ticket actions to their grants. View and update have
// own-scope fallbacks for the ticket's creator or assignee; close does not.
var PermissionMatrix = auth.PermissionMatrix{
	ActionView:   {Any: auth.PermTicketViewAny, Own: auth.PermTicketViewOwn},
	ActionCreate: {Any: auth.PermTicketCreate},
	ActionUpdate: {Any: auth.PermTicketUpdateAny, Own: auth.PermTicketUpdateOwn},
	ActionClose:  {Any: auth.PermTicketCloseAny},
}

// FieldPolicy gates the sensitive ticket fields. Reassignment always needs
// the unscoped update grant, even by the ticket's creator; priority may be
// changed under own scope.
var FieldPolicy = auth.FieldPolicy{
	FieldPriority:   {Any: auth.PermTicketUpdateAny, Own: auth.PermTicketUpdateOwn},
	FieldAssignedTo: {Any: auth.PermTicketUpdateAny},
}
