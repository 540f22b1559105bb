package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                             "/",
		"/metrics":                     "/metrics",
		"/v1/tickets":                  "/v1/tickets",
		"/v1/tickets/abc":              "/v1/tickets/:id",
		"/v1/tickets/abc/status":       "/v1/tickets/:id/status",
		"/v1/sessions/s1":              "/v1/sessions/:id",
		"/v1/users/u1/sessions":        "/v1/users/:id/sessions",
		"/v1/roles/r1/permissions":     "/v1/roles/:id/permissions",
		"/v1/organizations/o1/users":   "/v1/organizations/:id/users",
		"/v1/tickets?status=OPEN":      "/v1/tickets",
		"/v1/tickets/abc?fields=brief": "/v1/tickets/:id",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
