package auth

import (
	"errors"
	"testing"
	"time"
)

func TestSessionTransitions(t *testing.T) {
	cases := []struct {
		from  SessionState
		event string
		to    SessionState
		ok    bool
	}{
		{StateAnonymous, EventLogin, StateAuthenticated, true},
		{StateAuthenticated, EventExpireToken, StateTokenExpired, true},
		{StateAuthenticated, EventLogout, StateRevoked, true},
		{StateTokenExpired, EventLogout, StateRevoked, true},

		{StateAuthenticated, EventLogin, "", false},
		{StateTokenExpired, EventLogin, "", false},
		{StateAnonymous, EventExpireToken, "", false},
		{StateAnonymous, EventLogout, "", false},
		// REVOKED is terminal.
		{StateRevoked, EventLogin, "", false},
		{StateRevoked, EventExpireToken, "", false},
		{StateRevoked, EventLogout, "", false},
	}
	for _, c := range cases {
		got, err := Apply(c.from, c.event)
		if c.ok {
			if err != nil {
				t.Fatalf("%s + %s: unexpected error %v", c.from, c.event, err)
			}
			if got != c.to {
				t.Fatalf("%s + %s: got %s, want %s", c.from, c.event, got, c.to)
			}
			continue
		}
		if err == nil {
			t.Fatalf("%s + %s: expected denial", c.from, c.event)
		}
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s + %s: expected INVALID_STATUS_TRANSITION, got %v", c.from, c.event, err)
		}
	}
}

func TestStateOf(t *testing.T) {
	now := time.Now().UTC()
	revokedAt := now.Add(-time.Hour)

	if got := StateOf(nil, now); got != StateAnonymous {
		t.Fatalf("nil session: got %s", got)
	}

	live := &Session{ExpiresAt: now.Add(time.Hour)}
	if got := StateOf(live, now); got != StateAuthenticated {
		t.Fatalf("live session: got %s", got)
	}

	expired := &Session{ExpiresAt: now.Add(-time.Minute)}
	if got := StateOf(expired, now); got != StateTokenExpired {
		t.Fatalf("expired session: got %s", got)
	}

	// Revocation wins over expiry.
	revoked := &Session{ExpiresAt: now.Add(-time.Minute), RevokedAt: &revokedAt}
	if got := StateOf(revoked, now); got != StateRevoked {
		t.Fatalf("revoked session: got %s", got)
	}
}
