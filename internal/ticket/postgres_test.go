package ticket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"opendesk.org/internal/auth"
)

var ticketRowColumns = []string{
	"id", "organization_id", "subject", "description", "status", "priority",
	"created_by", "assigned_to", "created_at", "updated_at",
}

func TestPGCreateTicket(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectExec("insert into tickets").
		WithArgs(sqlmock.AnyArg(), "org", "broken printer", "", StatusOpen, PriorityMedium, "u1", "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	tk := &Ticket{
		OrganizationID: "org",
		Subject:        "broken printer",
		Status:         StatusOpen,
		Priority:       PriorityMedium,
		CreatedBy:      "u1",
	}
	if err := store.Create(context.Background(), tk); err != nil {
		t.Fatal(err)
	}
	if tk.ID == "" {
		t.Fatal("Create must assign an id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPGFindTicketMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectQuery("select (.+) from tickets where id=").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(ticketRowColumns))

	if _, err := store.Find(context.Background(), "missing"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestPGUpdateTicketStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	now := time.Now().UTC()
	closed := StatusClosed
	rows := sqlmock.NewRows(ticketRowColumns).
		AddRow("t1", "org", "subject", "", StatusClosed, PriorityMedium, "u1", "", now, now)
	mock.ExpectQuery("update tickets set").
		WithArgs("t1", nil, nil, nil, nil, string(StatusClosed)).
		WillReturnRows(rows)

	tk, err := store.Update(context.Background(), "t1", Update{Status: &closed})
	if err != nil {
		t.Fatal(err)
	}
	if tk.Status != StatusClosed {
		t.Fatalf("got %s, want CLOSED", tk.Status)
	}
}
