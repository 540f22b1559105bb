package auth

import (
	"reflect"
	"testing"
)

func TestFlattenPermissionsDeduplicates(t *testing.T) {
	grants := []RoleGrants{
		{Role: Role{ID: "r1", Name: "AGENT"}, Permissions: []string{PermTicketViewAny, PermTicketCreate}},
		{Role: Role{ID: "r2", Name: "USER"}, Permissions: []string{PermTicketCreate, PermTicketViewOwn}},
	}
	got := FlattenPermissions(grants)
	want := []string{PermTicketCreate, PermTicketViewAny, PermTicketViewOwn}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFlattenPermissionsEmpty(t *testing.T) {
	if got := FlattenPermissions(nil); len(got) != 0 {
		t.Fatalf("expected empty set, got %v", got)
	}
}

func TestPrincipalPermissionLookup(t *testing.T) {
	p := NewPrincipal("u1", "org", []string{"AGENT"}, []string{PermTicketViewAny, PermTicketViewAny})
	if !p.HasPermission(PermTicketViewAny) {
		t.Fatalf("expected permission")
	}
	if p.HasPermission(PermTicketCloseAny) {
		t.Fatalf("unexpected permission")
	}
	if got := p.PermissionList(); len(got) != 1 || got[0] != PermTicketViewAny {
		t.Fatalf("PermissionList should dedupe, got %v", got)
	}
}
