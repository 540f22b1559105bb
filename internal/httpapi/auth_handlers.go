package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"opendesk.org/internal/auth"
	"opendesk.org/internal/obs"
)

type loginRequest struct {
	OrganizationID string `json:"organization_id"`
	Email          string `json:"email"`
	Password       string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	auth.TokenPair
	UserID         string   `json:"user_id"`
	OrganizationID string   `json:"organization_id"`
	SessionID      string   `json:"session_id"`
	Roles          []string `json:"roles,omitempty"`
	Permissions    []string `json:"permissions"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.OrganizationID) == "" {
		writeError(w, r, http.StatusBadRequest, "organization_id is required")
		return
	}

	meta := auth.SessionMeta{
		UserAgent: r.UserAgent(),
		IPAddress: clientIP(r),
	}
	pair, principal, err := a.sessions.Login(r.Context(), req.OrganizationID, req.Email, req.Password, meta)
	if err != nil {
		obs.LoginsTotal.WithLabelValues("failure").Inc()
		handleDomainError(w, r, err)
		return
	}
	obs.LoginsTotal.WithLabelValues("success").Inc()

	ctx := auth.ContextWithPrincipal(r.Context(), principal)
	a.audit(ctx, "auth.session.login", "session", principal.SessionID, map[string]string{
		"ip": meta.IPAddress,
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		TokenPair:      pair,
		UserID:         principal.UserID,
		OrganizationID: principal.OrganizationID,
		SessionID:      principal.SessionID,
		Roles:          principal.Roles,
		Permissions:    principal.PermissionList(),
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, principal, err := a.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		// Reuse of an already-rotated secret lands here after the account's
		// sessions have been revoked.
		if errors.Is(err, auth.ErrInvalidRefreshToken) {
			obs.RefreshTheftsTotal.Inc()
		}
		handleDomainError(w, r, err)
		return
	}
	obs.RefreshRotationsTotal.Inc()

	ctx := auth.ContextWithPrincipal(r.Context(), principal)
	a.audit(ctx, "auth.session.refresh", "session", principal.SessionID, nil)

	writeJSON(w, http.StatusOK, tokenResponse{
		TokenPair:      pair,
		UserID:         principal.UserID,
		OrganizationID: principal.OrganizationID,
		SessionID:      principal.SessionID,
		Roles:          principal.Roles,
		Permissions:    principal.PermissionList(),
	})
}

// handleLogout revokes the session behind the presented access token.
// Idempotent: logging out twice succeeds both times.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if p.SessionID == "" {
		writeError(w, r, http.StatusBadRequest, "token carries no session")
		return
	}
	if err := a.sessions.RevokeSession(r.Context(), p.SessionID); err != nil {
		handleDomainError(w, r, err)
		return
	}
	obs.SessionsRevokedTotal.Inc()
	a.audit(r.Context(), "auth.session.logout", "session", p.SessionID, nil)
	w.WriteHeader(http.StatusNoContent)
}
