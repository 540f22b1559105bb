package auth

import (
	"errors"
	"testing"
)

type testTarget struct {
	creator  string
	assignee string
}

func (t *testTarget) CreatedByID() string  { return t.creator }
func (t *testTarget) AssignedToID() string { return t.assignee }

var testMatrix = PermissionMatrix{
	"view":   {Any: "doc:view:any", Own: "doc:view:own"},
	"create": {Any: "doc:create"},
}

func TestAnyScopeIgnoresTarget(t *testing.T) {
	p := NewPrincipal("u1", "org", nil, []string{"doc:view:any"})
	if !testMatrix.Can(p, "view", nil) {
		t.Fatalf("any grant should not need a target")
	}
	if !testMatrix.Can(p, "view", &testTarget{creator: "someone-else"}) {
		t.Fatalf("any grant should apply to foreign targets")
	}
}

func TestOwnScopeMatchesCreatorOrAssignee(t *testing.T) {
	p := NewPrincipal("u1", "org", nil, []string{"doc:view:own"})

	if !testMatrix.Can(p, "view", &testTarget{creator: "u1"}) {
		t.Fatalf("creator should pass own scope")
	}
	if !testMatrix.Can(p, "view", &testTarget{creator: "u2", assignee: "u1"}) {
		t.Fatalf("assignee should pass own scope")
	}
	if testMatrix.Can(p, "view", &testTarget{creator: "u2", assignee: "u3"}) {
		t.Fatalf("unrelated target should be denied")
	}
}

func TestOwnScopeNeedsTarget(t *testing.T) {
	p := NewPrincipal("u1", "org", nil, []string{"doc:view:own"})
	if testMatrix.Can(p, "view", nil) {
		t.Fatalf("own grant must not pass without a target")
	}
}

func TestUnknownActionDenies(t *testing.T) {
	p := NewPrincipal("u1", "org", nil, []string{"doc:view:any", "doc:create"})
	if testMatrix.Can(p, "delete", nil) {
		t.Fatalf("unlisted action should deny")
	}
}

func TestRequireReturnsTypedForbidden(t *testing.T) {
	p := NewPrincipal("u1", "org", nil, nil)
	err := testMatrix.Require(p, "create", nil)
	if err == nil {
		t.Fatal("expected denial")
	}
	var denial *Error
	if !errors.As(err, &denial) || denial.Code != CodeForbidden {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("denial should match ErrForbidden sentinel")
	}
	if !Denied(err) {
		t.Fatalf("Denied should report policy denials")
	}
}

func TestNoPermissionsDeniesEverything(t *testing.T) {
	p := NewPrincipal("u1", "org", nil, nil)
	for _, action := range []string{"view", "create"} {
		if testMatrix.Can(p, action, &testTarget{creator: "u1"}) {
			t.Fatalf("empty permission set must deny %q", action)
		}
	}
}
