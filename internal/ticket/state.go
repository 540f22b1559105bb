package ticket

import (
	"opendesk.org/internal/auth"
)

// Transitions declares the legal status edges. CLOSED is terminal: it has no
// outgoing edges. Legality here is structural only; whether the caller may
// perform the transition is the policy engine's concern.
var Transitions = map[Status][]Status{
	StatusOpen:       {StatusInProgress, StatusClosed},
	StatusInProgress: {StatusClosed, StatusResolved},
	StatusResolved:   {StatusClosed, StatusOpen},
	StatusClosed:     {},
}

// CanTransition reports whether the edge from -> to exists.
func CanTransition(from, to Status) bool {
	for _, next := range Transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AssertTransition returns a typed INVALID_STATUS_TRANSITION denial when the
// edge does not exist.
func AssertTransition(from, to Status) error {
	if CanTransition(from, to) {
		return nil
	}
	return &auth.Error{
		Code:    auth.CodeInvalidStatusTransition,
		Message: "illegal ticket transition " + string(from) + " -> " + string(to),
	}
}
