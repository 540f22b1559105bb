package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"opendesk.org/internal/auth"
	"opendesk.org/internal/ticket"
)

const testPassword = "opendesk-test-password"

type apiFixture struct {
	handler http.Handler
	rbac    *auth.RBACService
	orgID   string
	userID  string
}

func newAPIFixture(t *testing.T, permissions []string) *apiFixture {
	t.Helper()
	ctx := context.Background()
	store := auth.NewInMemoryStore()

	rbac, err := auth.NewRBACService(store)
	if err != nil {
		t.Fatal(err)
	}
	if err := rbac.EnsureCatalog(ctx); err != nil {
		t.Fatal(err)
	}
	org, err := rbac.CreateOrganization(ctx, "Acme Support", nil)
	if err != nil {
		t.Fatal(err)
	}
	user, err := rbac.CreateUser(ctx, org.ID, "dev@example.com", testPassword, "")
	if err != nil {
		t.Fatal(err)
	}
	role, err := rbac.CreateRole(ctx, org.ID, "TESTER", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := rbac.SetRolePermissions(ctx, role.ID, permissions); err != nil {
		t.Fatal(err)
	}
	if _, err := rbac.AssignRole(ctx, user.ID, role.ID); err != nil {
		t.Fatal(err)
	}

	sessions, err := auth.NewSessionService(store,
		auth.WithSigningSecret("0123456789abcdef0123456789abcdef"),
		auth.WithIssuer("opendesk-api"),
	)
	if err != nil {
		t.Fatal(err)
	}
	tickets, err := ticket.NewService(ticket.NewInMemoryStore())
	if err != nil {
		t.Fatal(err)
	}

	api := New(ReadyProbe{}, "test", sessions, rbac, tickets)
	return &apiFixture{handler: api.Handler(), rbac: rbac, orgID: org.ID, userID: user.ID}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "127.0.0.1:4242"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func (f *apiFixture) login(t *testing.T) map[string]any {
	t.Helper()
	rr := f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"organization_id": f.orgID,
		"email":           "dev@example.com",
		"password":        testPassword,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func errCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error body %q: %v", rr.Body.String(), err)
	}
	code, _ := body["code"].(string)
	return code
}

var agentPerms = []string{
	auth.PermTicketViewAny,
	auth.PermTicketCreate,
	auth.PermTicketUpdateAny,
	auth.PermTicketCloseAny,
	auth.PermSessionCreate,
	auth.PermSessionViewOwn,
	auth.PermSessionRevokeOwn,
}

var endUserPerms = []string{
	auth.PermTicketViewOwn,
	auth.PermTicketCreate,
	auth.PermTicketUpdateOwn,
	auth.PermSessionCreate,
	auth.PermSessionRevokeOwn,
}

func TestLoginRefreshLogoutFlow(t *testing.T) {
	f := newAPIFixture(t, agentPerms)
	resp := f.login(t)
	access, _ := resp["access_token"].(string)
	refresh, _ := resp["refresh_token"].(string)
	if access == "" || refresh == "" {
		t.Fatalf("missing tokens in %v", resp)
	}

	if rr := f.do(t, http.MethodGet, "/v1/tickets", access, nil); rr.Code != http.StatusOK {
		t.Fatalf("authenticated list: %d %s", rr.Code, rr.Body.String())
	}

	rr := f.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]any{"refresh_token": refresh})
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: %d %s", rr.Code, rr.Body.String())
	}

	// Replaying the consumed refresh token must fail and be labeled.
	rr = f.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]any{"refresh_token": refresh})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("replay: %d %s", rr.Code, rr.Body.String())
	}
	if got := errCode(t, rr); got != auth.CodeInvalidRefreshToken {
		t.Fatalf("replay code %q", got)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newAPIFixture(t, agentPerms)
	access, _ := f.login(t)["access_token"].(string)

	if rr := f.do(t, http.MethodPost, "/v1/auth/logout", access, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("logout: %d %s", rr.Code, rr.Body.String())
	}
	// The access token stays verifiable until it expires, so a second logout
	// is accepted and does nothing.
	if rr := f.do(t, http.MethodPost, "/v1/auth/logout", access, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("second logout: %d %s", rr.Code, rr.Body.String())
	}
}

func TestProtectedPathsNeedToken(t *testing.T) {
	f := newAPIFixture(t, agentPerms)
	if rr := f.do(t, http.MethodGet, "/v1/tickets", "", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", rr.Code)
	}
	if rr := f.do(t, http.MethodGet, "/v1/tickets", "not-a-jwt", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", rr.Code)
	}
}

func TestPermissionCatalogIsPublic(t *testing.T) {
	f := newAPIFixture(t, nil)
	rr := f.do(t, http.MethodGet, "/v1/permissions", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("catalog: %d", rr.Code)
	}
	var body struct {
		Permissions []auth.Definition `json:"permissions"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Permissions) != len(auth.Catalog) {
		t.Fatalf("got %d definitions, want %d", len(body.Permissions), len(auth.Catalog))
	}
}

func TestForbiddenMapsTo403(t *testing.T) {
	f := newAPIFixture(t, []string{auth.PermSessionCreate})
	access, _ := f.login(t)["access_token"].(string)

	rr := f.do(t, http.MethodPost, "/v1/tickets", access, map[string]any{"subject": "nope"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("got %d, want 403", rr.Code)
	}
	if got := errCode(t, rr); got != auth.CodeForbidden {
		t.Fatalf("code %q", got)
	}
}

func TestIllegalTransitionMapsTo409(t *testing.T) {
	f := newAPIFixture(t, agentPerms)
	access, _ := f.login(t)["access_token"].(string)

	rr := f.do(t, http.MethodPost, "/v1/tickets", access, map[string]any{"subject": "flow"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	var created ticket.Ticket
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	rr = f.do(t, http.MethodPost, "/v1/tickets/"+created.ID+"/status", access, map[string]any{"status": "RESOLVED"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("got %d, want 409", rr.Code)
	}
	if got := errCode(t, rr); got != auth.CodeInvalidStatusTransition {
		t.Fatalf("code %q", got)
	}
}

func TestFieldDenialNamesTheField(t *testing.T) {
	f := newAPIFixture(t, endUserPerms)
	access, _ := f.login(t)["access_token"].(string)

	rr := f.do(t, http.MethodPost, "/v1/tickets", access, map[string]any{"subject": "mine"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	var created ticket.Ticket
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	rr = f.do(t, http.MethodPatch, "/v1/tickets/"+created.ID, access, map[string]any{"assigned_to": "someone"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("got %d, want 403", rr.Code)
	}
	if got := errCode(t, rr); got != "FORBIDDEN_FIELD_ASSIGNED_TO" {
		t.Fatalf("code %q", got)
	}
}

func TestRBACAdminEndpointsAreGuarded(t *testing.T) {
	f := newAPIFixture(t, endUserPerms)
	access, _ := f.login(t)["access_token"].(string)

	rr := f.do(t, http.MethodPost, "/v1/organizations", access, map[string]any{"name": "Shadow Org"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("got %d, want 403", rr.Code)
	}
}

func TestRevokeOwnSessions(t *testing.T) {
	f := newAPIFixture(t, endUserPerms)
	access, _ := f.login(t)["access_token"].(string)

	rr := f.do(t, http.MethodDelete, "/v1/users/"+f.userID+"/sessions", access, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("revoke own sessions: %d %s", rr.Code, rr.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if n, _ := body["revoked"].(float64); n != 1 {
		t.Fatalf("revoked %v sessions, want 1", body["revoked"])
	}
}

func TestRequestIDEchoed(t *testing.T) {
	f := newAPIFixture(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("request id %q", got)
	}
}
