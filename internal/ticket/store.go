package ticket

import "context"

// Store describes ticket persistence. The service calls these but owns no
// persistence logic itself.
type Store interface {
	Create(ctx context.Context, t *Ticket) error
	Find(ctx context.Context, id string) (*Ticket, error)
	ListByOrg(ctx context.Context, orgID string) ([]*Ticket, error)
	Update(ctx context.Context, id string, upd Update) (*Ticket, error)
}
