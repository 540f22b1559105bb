package httpapi

import (
	"net/http"
	"strings"
	"time"

	"opendesk.org/internal/ticket"
)

type createTicketRequest struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	AssignedTo  string `json:"assigned_to"`
}

type updateTicketRequest struct {
	Subject     *string `json:"subject"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	AssignedTo  *string `json:"assigned_to"`
}

type transitionTicketRequest struct {
	Status string `json:"status"`
}

type listTicketsResponse struct {
	Items []*ticket.Ticket `json:"items"`
	AsOf  time.Time        `json:"as_of"`
}

func (a *API) handleTicketsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createTicket(w, r)
	case http.MethodGet:
		a.listTickets(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleTicketResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/tickets/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if id, ok := strings.CutSuffix(path, "/status"); ok {
		if id == "" || strings.Contains(id, "/") {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.transitionTicket(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getTicket(w, r, path)
	case http.MethodPatch:
		a.updateTicket(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

func (a *API) createTicket(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req createTicketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	t, err := a.tickets.Create(r.Context(), p, ticket.CreateInput{
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    ticket.Priority(req.Priority),
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r.Context(), "ticket.create", "ticket", t.ID, map[string]string{
		"subject":  t.Subject,
		"priority": string(t.Priority),
	})
	w.Header().Set("Location", "/v1/tickets/"+t.ID)
	writeJSON(w, http.StatusCreated, t)
}

func (a *API) listTickets(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	items, err := a.tickets.List(r.Context(), p)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if items == nil {
		items = []*ticket.Ticket{}
	}
	writeJSON(w, http.StatusOK, listTicketsResponse{
		Items: items,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) getTicket(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	t, err := a.tickets.Get(r.Context(), p, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *API) updateTicket(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req updateTicketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var priority *ticket.Priority
	if req.Priority != nil {
		pr := ticket.Priority(*req.Priority)
		priority = &pr
	}
	t, err := a.tickets.Update(r.Context(), p, id, ticket.UpdateInput{
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    priority,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r.Context(), "ticket.update", "ticket", t.ID, nil)
	writeJSON(w, http.StatusOK, t)
}

func (a *API) transitionTicket(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req transitionTicketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	t, err := a.tickets.Transition(r.Context(), p, id, ticket.Status(req.Status))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r.Context(), "ticket.transition", "ticket", t.ID, map[string]string{
		"status": string(t.Status),
	})
	writeJSON(w, http.StatusOK, t)
}
