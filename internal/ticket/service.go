package ticket

import (
	"context"
	"fmt"
	"strings"

	"opendesk.org/internal/auth"
)

// Service is the authorization gate in front of the ticket store. Every
// mutation passes the policy engine; status changes additionally pass the
// state machine. Both gates must pass before anything is persisted.
type Service struct {
	store Store
}

// NewService constructs the service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("ticket: store is required")
	}
	return &Service{store: store}, nil
}

// CreateInput is the caller-supplied part of a new ticket.
type CreateInput struct {
	Subject     string
	Description string
	Priority    Priority
	AssignedTo  string
}

// Create opens a new ticket in the principal's organization.
func (s *Service) Create(ctx context.Context, principal auth.Principal, in CreateInput) (*Ticket, error) {
	if err := PermissionMatrix.Require(principal, ActionCreate, nil); err != nil {
		return nil, err
	}
	in.Subject = strings.TrimSpace(in.Subject)
	if in.Subject == "" {
		return nil, fmt.Errorf("%w: subject is required", auth.ErrInvalidInput)
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !in.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", auth.ErrInvalidInput, in.Priority)
	}
	t := &Ticket{
		OrganizationID: principal.OrganizationID,
		Subject:        in.Subject,
		Description:    in.Description,
		Status:         StatusOpen,
		Priority:       in.Priority,
		CreatedBy:      principal.UserID,
		AssignedTo:     strings.TrimSpace(in.AssignedTo),
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get loads a ticket and enforces the view policy against it.
func (s *Service) Get(ctx context.Context, principal auth.Principal, id string) (*Ticket, error) {
	t, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := PermissionMatrix.Require(principal, ActionView, t); err != nil {
		return nil, err
	}
	return t, nil
}

// List returns the organization's tickets the principal may view: all of
// them under view:any, only created/assigned ones under view:own.
func (s *Service) List(ctx context.Context, principal auth.Principal) ([]*Ticket, error) {
	all, err := s.store.ListByOrg(ctx, principal.OrganizationID)
	if err != nil {
		return nil, err
	}
	if principal.HasPermission(auth.PermTicketViewAny) {
		return all, nil
	}
	if !principal.HasPermission(auth.PermTicketViewOwn) {
		return nil, auth.ErrForbidden
	}
	var own []*Ticket
	for _, t := range all {
		if t.CreatedBy == principal.UserID || t.AssignedTo == principal.UserID {
			own = append(own, t)
		}
	}
	return own, nil
}

// UpdateInput is a partial ticket update. Status is deliberately absent:
// status changes go through Transition.
type UpdateInput struct {
	Subject     *string
	Description *string
	Priority    *Priority
	AssignedTo  *string
}

// Update applies a partial update. The coarse update policy is checked
// first; the sensitive fields then pass the field policy, so a denial names
// the exact field that was rejected.
func (s *Service) Update(ctx context.Context, principal auth.Principal, id string, in UpdateInput) (*Ticket, error) {
	t, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := PermissionMatrix.Require(principal, ActionUpdate, t); err != nil {
		return nil, err
	}
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return nil, fmt.Errorf("%w: unknown priority %q", auth.ErrInvalidInput, *in.Priority)
		}
		if err := FieldPolicy.RequireField(principal, FieldPriority, t); err != nil {
			return nil, err
		}
	}
	if in.AssignedTo != nil {
		if err := FieldPolicy.RequireField(principal, FieldAssignedTo, t); err != nil {
			return nil, err
		}
	}
	if in.Subject != nil {
		subject := strings.TrimSpace(*in.Subject)
		if subject == "" {
			return nil, fmt.Errorf("%w: subject is required", auth.ErrInvalidInput)
		}
		in.Subject = &subject
	}
	return s.store.Update(ctx, id, Update{
		Subject:     in.Subject,
		Description: in.Description,
		Priority:    in.Priority,
		AssignedTo:  in.AssignedTo,
	})
}

// Transition moves a ticket to next. State-machine legality and permission
// are independent gates: the edge must exist, the principal needs the coarse
// update grant, and closing additionally needs the close grant regardless of
// edge legality.
func (s *Service) Transition(ctx context.Context, principal auth.Principal, id string, next Status) (*Ticket, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", auth.ErrInvalidInput, next)
	}
	t, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := PermissionMatrix.Require(principal, ActionUpdate, t); err != nil {
		return nil, err
	}
	if err := AssertTransition(t.Status, next); err != nil {
		return nil, err
	}
	if next == StatusClosed {
		if err := PermissionMatrix.Require(principal, ActionClose, t); err != nil {
			return nil, err
		}
	}
	return s.store.Update(ctx, id, Update{Status: &next})
}
