package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"opendesk.org/internal/auth"
	"opendesk.org/internal/obs"
)

func (a *API) handleSessionResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getSession(w, r, id)
	case http.MethodDelete:
		a.revokeSession(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	sess, err := a.sessions.GetSession(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if err := auth.SessionPermissionMatrix.Require(p, "view", sess); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (a *API) revokeSession(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	sess, err := a.sessions.GetSession(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if err := auth.SessionPermissionMatrix.Require(p, "revoke", sess); err != nil {
		handleDomainError(w, r, err)
		return
	}
	if err := a.sessions.RevokeSession(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	obs.SessionsRevokedTotal.Inc()
	a.audit(r.Context(), "auth.session.revoke", "session", id, map[string]string{
		"session_user_id": sess.UserID,
	})
	w.WriteHeader(http.StatusNoContent)
}

// revokeUserSessions handles DELETE /v1/users/{id}/sessions: bulk revocation
// of every active session of one account.
func (a *API) revokeUserSessions(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	// Revoking your own sessions needs the own-scoped grant; anyone else's
	// needs the any-scoped one. The target stands in for the user's sessions.
	target := &auth.Session{UserID: userID}
	if err := auth.SessionPermissionMatrix.Require(p, "revoke", target); err != nil {
		handleDomainError(w, r, err)
		return
	}
	count, err := a.sessions.RevokeAllSessions(r.Context(), userID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	obs.SessionsRevokedTotal.Add(float64(count))
	a.audit(r.Context(), "auth.session.revoke_all", "user", userID, map[string]string{
		"revoked": strconv.FormatInt(count, 10),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"revoked": count,
	})
}
