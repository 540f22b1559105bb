package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"opendesk.org/internal/auth"
)

type createOrganizationRequest struct {
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata"`
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TeamID   string `json:"team_id"`
}

type updateUserRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	IsActive *bool   `json:"is_active"`
	TeamID   *string `json:"team_id"`
}

type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateRolePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

func (a *API) handleOrganizations(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !ensurePermission(w, r, p, auth.PermUserUpdateAny) {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req createOrganizationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		org, err := a.rbac.CreateOrganization(r.Context(), req.Name, req.Metadata)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.organization.create", "organization", org.ID, map[string]string{
			"name": org.Name,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/organizations/%s", org.ID))
		writeJSON(w, http.StatusCreated, org)
	case http.MethodGet:
		orgs, err := a.rbac.ListOrganizations(r.Context())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": orgs})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleOrganizationScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/organizations/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	orgID := parts[0]
	switch {
	case len(parts) == 1:
		a.getOrganization(w, r, orgID)
	case len(parts) == 2 && parts[1] == "users":
		a.handleOrganizationUsers(w, r, orgID)
	case len(parts) == 2 && parts[1] == "roles":
		a.handleOrganizationRoles(w, r, orgID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) getOrganization(w http.ResponseWriter, r *http.Request, orgID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	// Members may view their own tenant; anything else is admin territory.
	if p.OrganizationID != orgID && !p.HasPermission(auth.PermUserUpdateAny) {
		writeErrorCode(w, r, http.StatusForbidden, auth.CodeForbidden, "missing permission "+auth.PermUserUpdateAny)
		return
	}
	org, err := a.rbac.GetOrganization(r.Context(), orgID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (a *API) handleOrganizationUsers(w http.ResponseWriter, r *http.Request, orgID string) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		if !ensurePermission(w, r, p, auth.PermUserUpdateAny) {
			return
		}
		var req createUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.rbac.CreateUser(r.Context(), orgID, req.Email, req.Password, req.TeamID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.user.create", "user", user.ID, map[string]string{
			"organization_id": orgID,
			"email":           user.Email,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", user.ID))
		writeJSON(w, http.StatusCreated, user)
	case http.MethodGet:
		if !ensurePermission(w, r, p, auth.PermUserViewAny) {
			return
		}
		users, err := a.rbac.ListUsers(r.Context(), orgID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": users})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleOrganizationRoles(w http.ResponseWriter, r *http.Request, orgID string) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !ensurePermission(w, r, p, auth.PermUserUpdateAny) {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req createRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.rbac.CreateRole(r.Context(), orgID, req.Name, req.Description)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.role.create", "role", role.ID, map[string]string{
			"organization_id": orgID,
			"name":            role.Name,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/roles/%s", role.ID))
		writeJSON(w, http.StatusCreated, role)
	case http.MethodGet:
		roles, err := a.rbac.ListRoles(r.Context(), orgID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": roles})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/roles/"), "/")
	parts := strings.Split(path, "/")
	if path == "" || len(parts) != 2 || parts[1] != "permissions" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	roleID := parts[0]
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !ensurePermission(w, r, p, auth.PermUserUpdateAny) {
		return
	}
	var req updateRolePermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.rbac.SetRolePermissions(r.Context(), roleID, req.Permissions); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r.Context(), "rbac.role.permissions.update", "role", roleID, map[string]string{
		"count": fmt.Sprintf("%d", len(req.Permissions)),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	userID := parts[0]
	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			a.getUser(w, r, userID)
		case http.MethodPatch:
			a.updateUser(w, r, userID)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
		}
	case len(parts) == 2 && parts[1] == "sessions":
		a.revokeUserSessions(w, r, userID)
	case len(parts) == 2 && parts[1] == "assignments":
		a.handleUserAssignments(w, r, userID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request, userID string) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	user, err := a.rbac.GetUser(r.Context(), userID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if err := auth.UserPermissionMatrix.Require(p, "view", user); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// updateUser applies a partial user update. The coarse update grant is
// checked first, then every sensitive field passes the field policy so the
// denial names the field.
func (a *API) updateUser(w http.ResponseWriter, r *http.Request, userID string) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	user, err := a.rbac.GetUser(r.Context(), userID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if err := auth.UserPermissionMatrix.Require(p, "update", user); err != nil {
		handleDomainError(w, r, err)
		return
	}
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Password != nil {
		if err := auth.UserFieldPolicy.RequireField(p, "passwordHash", user); err != nil {
			handleDomainError(w, r, err)
			return
		}
	}
	if req.IsActive != nil {
		if err := auth.UserFieldPolicy.RequireField(p, "isActive", user); err != nil {
			handleDomainError(w, r, err)
			return
		}
	}
	if req.TeamID != nil {
		if err := auth.UserFieldPolicy.RequireField(p, "teamId", user); err != nil {
			handleDomainError(w, r, err)
			return
		}
	}
	var status *string
	if req.IsActive != nil {
		s := auth.UserStatusDisabled
		if *req.IsActive {
			s = auth.UserStatusActive
		}
		status = &s
	}
	updated, err := a.rbac.UpdateUser(r.Context(), userID, auth.UserUpdate{
		Email:        req.Email,
		PasswordHash: req.Password,
		Status:       status,
		TeamID:       req.TeamID,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r.Context(), "rbac.user.update", "user", userID, nil)
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) handleUserAssignments(w http.ResponseWriter, r *http.Request, userID string) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !ensurePermission(w, r, p, auth.PermUserUpdateAny) {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req assignRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		req.RoleID = strings.TrimSpace(req.RoleID)
		if req.RoleID == "" {
			writeError(w, r, http.StatusBadRequest, "role_id is required")
			return
		}
		assignment, err := a.rbac.AssignRole(r.Context(), userID, req.RoleID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.user.assign_role", "user", userID, map[string]string{
			"role_id": assignment.RoleID,
		})
		writeJSON(w, http.StatusCreated, assignment)
	case http.MethodDelete:
		var req assignRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.rbac.RemoveRoleAssignment(r.Context(), userID, req.RoleID); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.user.remove_role", "user", userID, map[string]string{
			"role_id": req.RoleID,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}
