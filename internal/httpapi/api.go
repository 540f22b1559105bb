package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"opendesk.org/internal/audit"
	"opendesk.org/internal/auth"
	"opendesk.org/internal/obs"
	"opendesk.org/internal/ticket"
)

// ReadyProbe reports readiness (pings the database when one is configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the session, RBAC and ticket services.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	sessions *auth.SessionService
	rbac     *auth.RBACService
	tickets  *ticket.Service
}

func New(rp ReadyProbe, version string, sessions *auth.SessionService, rbac *auth.RBACService, tickets *ticket.Service) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		sessions:   sessions,
		rbac:       rbac,
		tickets:    tickets,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// permission catalog (documentation)
	a.mux.HandleFunc("/v1/permissions", a.handlePermissionCatalog)

	// session lifecycle
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/sessions/", a.handleSessionResource)

	// tickets
	a.mux.HandleFunc("/v1/tickets", a.handleTicketsCollection)
	a.mux.HandleFunc("/v1/tickets/", a.handleTicketResource)

	// rbac administration
	a.mux.HandleFunc("/v1/organizations", a.handleOrganizations)
	a.mux.HandleFunc("/v1/organizations/", a.handleOrganizationScoped)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)
	a.mux.HandleFunc("/v1/roles/", a.handleRoleResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "opendesk-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "opendesk-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// handlePermissionCatalog lists every permission key with its HTTP-surface
// metadata. The catalog is static, so no auth is required to read it.
func (a *API) handlePermissionCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	defs := make([]auth.Definition, 0, len(auth.Catalog))
	for _, key := range auth.CatalogKeys() {
		defs = append(defs, auth.Catalog[key])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"permissions": defs,
	})
}

func (a *API) audit(ctx context.Context, event, entityType, entityID string, meta map[string]string) {
	fields := map[string]any{
		"entity_type": entityType,
		"entity_id":   entityID,
	}
	for k, v := range meta {
		fields[k] = v
	}
	_ = audit.LogEvent(ctx, event, fields)
}
