package ticket

import "time"

// Status is the ticket lifecycle state, drawn from a fixed enumeration and
// mutated only through the state machine + policy gate.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
	StatusClosed     Status = "CLOSED"
)

// Statuses lists every ticket status.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusResolved, StatusClosed}

// Valid reports whether s is a member of the enumeration.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Priority of a ticket. Changing it is gated by the field policy.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Valid reports whether p is a member of the enumeration.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Ticket is a helpdesk request. CreatedBy and AssignedTo feed the "own"
// scope checks of the policy engine.
type Ticket struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Subject        string    `json:"subject"`
	Description    string    `json:"description,omitempty"`
	Status         Status    `json:"status"`
	Priority       Priority  `json:"priority"`
	CreatedBy      string    `json:"created_by"`
	AssignedTo     string    `json:"assigned_to,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreatedByID implements the policy target.
func (t *Ticket) CreatedByID() string { return t.CreatedBy }

// AssignedToID implements the policy target.
func (t *Ticket) AssignedToID() string { return t.AssignedTo }

// Update carries the mutable ticket fields; nil means leave unchanged.
type Update struct {
	Subject     *string
	Description *string
	Priority    *Priority
	AssignedTo  *string
	Status      *Status
}
