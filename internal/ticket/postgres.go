package ticket

import (
	"context"
	"database/sql"

	"opendesk.org/internal/auth"
	"opendesk.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const ticketColumns = `id, organization_id, subject, coalesce(description,''), status, priority, created_by, coalesce(assigned_to,''), created_at, updated_at`

func scanTicket(row interface{ Scan(...any) error }) (*Ticket, error) {
	var t Ticket
	if err := row.Scan(&t.ID, &t.OrganizationID, &t.Subject, &t.Description, &t.Status, &t.Priority, &t.CreatedBy, &t.AssignedTo, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *PGStore) Create(ctx context.Context, t *Ticket) error {
	if t.ID == "" {
		t.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into tickets(id, organization_id, subject, description, status, priority, created_by, assigned_to)
		 values($1,$2,$3,nullif($4,''),$5,$6,$7,nullif($8,''))`,
		t.ID, t.OrganizationID, t.Subject, t.Description, t.Status, t.Priority, t.CreatedBy, t.AssignedTo,
	)
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (*Ticket, error) {
	return scanTicket(s.db.QueryRowContext(ctx,
		`select `+ticketColumns+` from tickets where id=$1`, id))
}

func (s *PGStore) ListByOrg(ctx context.Context, orgID string) ([]*Ticket, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+ticketColumns+` from tickets where organization_id=$1 order by created_at`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []*Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (s *PGStore) Update(ctx context.Context, id string, upd Update) (*Ticket, error) {
	row := s.db.QueryRowContext(ctx,
		`update tickets set
		   subject = coalesce($2, subject),
		   description = coalesce($3, description),
		   priority = coalesce($4, priority),
		   assigned_to = case when $5::text is null then assigned_to else nullif($5,'') end,
		   status = coalesce($6, status),
		   updated_at = now()
		 where id=$1
		 returning `+ticketColumns,
		id, upd.Subject, upd.Description, upd.Priority, upd.AssignedTo, upd.Status,
	)
	return scanTicket(row)
}
