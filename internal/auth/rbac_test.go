package auth

import (
	"context"
	"errors"
	"testing"
)

func newRBACFixture(t *testing.T) (*RBACService, *Organization) {
	t.Helper()
	svc, err := NewRBACService(NewInMemoryStore())
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.EnsureCatalog(context.Background()); err != nil {
		t.Fatal(err)
	}
	org, err := svc.CreateOrganization(context.Background(), "Acme", nil)
	if err != nil {
		t.Fatal(err)
	}
	return svc, org
}

func TestCreateUserNormalizesAndHashes(t *testing.T) {
	svc, org := newRBACFixture(t)
	user, err := svc.CreateUser(context.Background(), org.ID, "  Dev@Example.COM ", "secret-password", "")
	if err != nil {
		t.Fatal(err)
	}
	if user.Email != "dev@example.com" {
		t.Fatalf("email not normalized: %q", user.Email)
	}
	if user.Status != UserStatusActive {
		t.Fatalf("new users start active, got %q", user.Status)
	}
	if user.PasswordHash == "secret-password" || user.PasswordHash == "" {
		t.Fatal("password must be stored hashed")
	}
	if err := VerifyPassword(user.PasswordHash, "secret-password"); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestCreateUserValidation(t *testing.T) {
	svc, org := newRBACFixture(t)
	ctx := context.Background()
	if _, err := svc.CreateUser(ctx, org.ID, "not-an-email", "pw", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad email: got %v", err)
	}
	if _, err := svc.CreateUser(ctx, org.ID, "a@b.c", "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty password: got %v", err)
	}
}

func TestSetRolePermissionsRejectsUnknownKey(t *testing.T) {
	svc, org := newRBACFixture(t)
	ctx := context.Background()
	role, err := svc.CreateRole(ctx, org.ID, "AGENT", "")
	if err != nil {
		t.Fatal(err)
	}
	err = svc.SetRolePermissions(ctx, role.ID, []string{PermTicketViewAny, "ticket:frobnicate"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown key: got %v", err)
	}
}

func TestUserPermissionsFlattenAcrossRoles(t *testing.T) {
	svc, org := newRBACFixture(t)
	ctx := context.Background()
	user, err := svc.CreateUser(ctx, org.ID, "dev@example.com", "pw-123456", "")
	if err != nil {
		t.Fatal(err)
	}
	agent, err := svc.CreateRole(ctx, org.ID, "AGENT", "")
	if err != nil {
		t.Fatal(err)
	}
	viewer, err := svc.CreateRole(ctx, org.ID, "VIEWER", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.SetRolePermissions(ctx, agent.ID, []string{PermTicketViewAny, PermTicketCreate}); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetRolePermissions(ctx, viewer.ID, []string{PermTicketViewAny}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AssignRole(ctx, user.ID, agent.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AssignRole(ctx, user.ID, viewer.ID); err != nil {
		t.Fatal(err)
	}

	perms, err := svc.UserPermissions(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(perms) != 2 {
		t.Fatalf("overlapping grants must dedupe, got %v", perms)
	}
}

func TestAssignRoleRequiresExistingRole(t *testing.T) {
	svc, org := newRBACFixture(t)
	ctx := context.Background()
	user, err := svc.CreateUser(ctx, org.ID, "dev@example.com", "pw-123456", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AssignRole(ctx, user.ID, "missing-role"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
