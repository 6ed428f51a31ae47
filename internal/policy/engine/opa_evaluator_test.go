package engine

import (
	"context"
	"testing"

	sessiondomain "complaintrack/server/internal/session/domain"
)

func TestDefaultPolicyAllowsAdmin(t *testing.T) {
	e, err := NewOPAEvaluator("")
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	res, err := e.EvaluateAccess(context.Background(),
		&sessiondomain.Snapshot{ID: 1, Role: "admin"}, "sessions", "list")
	if err != nil {
		t.Fatalf("EvaluateAccess: %v", err)
	}
	if !res.Allow {
		t.Fatal("admin should be allowed by the default policy")
	}
}

func TestDefaultPolicyDeniesUser(t *testing.T) {
	e, err := NewOPAEvaluator("")
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.EvaluateAccess(context.Background(),
		&sessiondomain.Snapshot{ID: 7001, Role: "user"}, "sessions", "list")
	if err != nil {
		t.Fatalf("EvaluateAccess: %v", err)
	}
	if res.Allow {
		t.Fatal("non-admin should be denied by the default policy")
	}
}

func TestNilIdentityDenied(t *testing.T) {
	e, err := NewOPAEvaluator("")
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.EvaluateAccess(context.Background(), nil, "sessions", "list")
	if err != nil {
		t.Fatalf("EvaluateAccess: %v", err)
	}
	if res.Allow {
		t.Fatal("nil identity must be denied")
	}
}

func TestCustomPolicyOverride(t *testing.T) {
	custom := `package complaintrack.access

default allow = false

allow if {
	input.identity.role == "admin"
}

allow if {
	input.resource == "messages"
	input.action == "read"
}
`
	e, err := NewOPAEvaluator(custom)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	res, err := e.EvaluateAccess(context.Background(),
		&sessiondomain.Snapshot{ID: 7001, Role: "user"}, "messages", "read")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allow {
		t.Fatal("custom policy should allow user to read messages")
	}
	res, err = e.EvaluateAccess(context.Background(),
		&sessiondomain.Snapshot{ID: 7001, Role: "user"}, "sessions", "list")
	if err != nil {
		t.Fatal(err)
	}
	if res.Allow {
		t.Fatal("custom policy should still deny session listing to users")
	}
}

func TestInvalidPolicyRejected(t *testing.T) {
	if _, err := NewOPAEvaluator("package broken\nallow {"); err == nil {
		t.Fatal("want compile error for invalid policy")
	}
}

func TestHealthCheck(t *testing.T) {
	e, err := NewOPAEvaluator("")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}
