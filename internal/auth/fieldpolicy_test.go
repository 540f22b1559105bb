package auth

import (
	"errors"
	"testing"
)

func TestFieldForbiddenCode(t *testing.T) {
	cases := map[string]string{
		"priority":     "FORBIDDEN_FIELD_PRIORITY",
		"assignedTo":   "FORBIDDEN_FIELD_ASSIGNED_TO",
		"passwordHash": "FORBIDDEN_FIELD_PASSWORD_HASH",
		"isActive":     "FORBIDDEN_FIELD_IS_ACTIVE",
		"teamId":       "FORBIDDEN_FIELD_TEAM_ID",
	}
	for field, want := range cases {
		if got := FieldForbidden(field).Code; got != want {
			t.Fatalf("field %q: got code %q, want %q", field, got, want)
		}
	}
}

func TestUserFieldPolicyRequiresAnyGrant(t *testing.T) {
	admin := NewPrincipal("admin", "org", nil, []string{PermUserUpdateAny})
	self := NewPrincipal("u1", "org", nil, []string{PermUserViewOwn})
	target := &User{ID: "u1"}

	for _, field := range []string{"passwordHash", "isActive", "teamId"} {
		if !UserFieldPolicy.CanUpdateField(admin, field, target) {
			t.Fatalf("admin should update %q", field)
		}
		// Owning the record is not enough for privileged fields.
		if UserFieldPolicy.CanUpdateField(self, field, target) {
			t.Fatalf("self-service write of %q must be denied", field)
		}
	}
}

func TestUnknownFieldDenies(t *testing.T) {
	admin := NewPrincipal("admin", "org", nil, []string{PermUserUpdateAny})
	if UserFieldPolicy.CanUpdateField(admin, "email", nil) {
		t.Fatalf("fields outside the policy must deny")
	}
}

func TestRequireFieldMatchesErrorTaxonomy(t *testing.T) {
	p := NewPrincipal("u1", "org", nil, nil)
	err := UserFieldPolicy.RequireField(p, "isActive", &User{ID: "u1"})
	if err == nil {
		t.Fatal("expected denial")
	}
	var denial *Error
	if !errors.As(err, &denial) {
		t.Fatalf("expected typed error, got %T", err)
	}
	if denial.Code != "FORBIDDEN_FIELD_IS_ACTIVE" {
		t.Fatalf("unexpected code %q", denial.Code)
	}
	if !Denied(err) {
		t.Fatalf("field denial should count as denied")
	}
	// Field denials are not the generic FORBIDDEN.
	if errors.Is(err, ErrForbidden) {
		t.Fatalf("field denial must keep its own code")
	}
}
