package auth

import "time"

// SessionState is the derived lifecycle state of a login. It is computed per
// request from token/session validity and never stored as a field.
type SessionState string

const (
	StateAnonymous     SessionState = "ANONYMOUS"
	StateAuthenticated SessionState = "AUTHENTICATED"
	StateTokenExpired  SessionState = "TOKEN_EXPIRED"
	StateRevoked       SessionState = "REVOKED"
)

// Lifecycle events.
const (
	EventLogin       = "login"
	EventExpireToken = "expireToken"
	EventLogout      = "logout"
)

// sessionTransitions declares the legal edges. REVOKED is terminal: no event
// leads out of it.
var sessionTransitions = map[string]struct {
	from []SessionState
	to   SessionState
}{
	EventLogin:       {from: []SessionState{StateAnonymous}, to: StateAuthenticated},
	EventExpireToken: {from: []SessionState{StateAuthenticated}, to: StateTokenExpired},
	EventLogout:      {from: []SessionState{StateAuthenticated, StateTokenExpired}, to: StateRevoked},
}

// CanTransition reports whether event is legal from the given state.
func CanTransition(from SessionState, event string) bool {
	edge, ok := sessionTransitions[event]
	if !ok {
		return false
	}
	for _, s := range edge.from {
		if s == from {
			return true
		}
	}
	return false
}

// Apply returns the state after event, or a typed denial if the edge does
// not exist.
func Apply(from SessionState, event string) (SessionState, error) {
	if !CanTransition(from, event) {
		return from, &Error{Code: CodeInvalidStatusTransition, Message: "illegal session transition " + string(from) + " -> " + event}
	}
	return sessionTransitions[event].to, nil
}

// StateOf derives the lifecycle state of a session at the given instant.
func StateOf(s *Session, now time.Time) SessionState {
	switch {
	case s == nil:
		return StateAnonymous
	case s.Revoked():
		return StateRevoked
	case now.After(s.ExpiresAt):
		return StateTokenExpired
	default:
		return StateAuthenticated
	}
}
