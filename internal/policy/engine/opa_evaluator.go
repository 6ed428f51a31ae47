// Package engine evaluates access policy with in-process OPA Rego. The
// shipped policy grants admins everything and nobody else anything; operators
// can override it with their own Rego module.
package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	sessiondomain "complaintrack/server/internal/session/domain"
)

const accessQuery = "data.complaintrack.access.allow"

// Default Rego policy: admins can do anything, everyone else is denied.
const defaultRegoPolicy = `package complaintrack.access

default allow = false

allow if {
	input.identity.role == "admin"
}
`

// OPAEvaluator evaluates access policy using OPA Rego. The policy module is
// compiled once at construction.
type OPAEvaluator struct {
	compiler *ast.Compiler
}

// NewOPAEvaluator compiles customPolicy, or the default admin-only policy
// when customPolicy is empty, and returns the evaluator. A policy that does
// not compile is a configuration error.
func NewOPAEvaluator(customPolicy string) (*OPAEvaluator, error) {
	policy := customPolicy
	if policy == "" {
		policy = defaultRegoPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"access.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("compile access policy: %w", err)
	}
	return &OPAEvaluator{compiler: compiler}, nil
}

// HealthCheck verifies the compiled policy evaluates against a minimal input.
// Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.eval(ctx, map[string]interface{}{
		"identity": map[string]interface{}{"id": 0, "role": ""},
		"resource": "",
		"action":   "",
	})
	return err
}

// EvaluateAccess evaluates the policy for identity against resource and
// action. A nil identity is denied without consulting the policy.
func (e *OPAEvaluator) EvaluateAccess(ctx context.Context, identity *sessiondomain.Snapshot, resource, action string) (AccessResult, error) {
	if identity == nil {
		return AccessResult{Allow: false}, nil
	}
	input := map[string]interface{}{
		"identity": map[string]interface{}{
			"id":     identity.ID,
			"userId": identity.UserID,
			"role":   identity.Role,
			"email":  identity.Email,
		},
		"resource": resource,
		"action":   action,
	}
	allow, err := e.eval(ctx, input)
	if err != nil {
		return AccessResult{Allow: false}, err
	}
	return AccessResult{Allow: allow}, nil
}

func (e *OPAEvaluator) eval(ctx context.Context, input map[string]interface{}) (bool, error) {
	q := rego.New(
		rego.Query(accessQuery),
		rego.Compiler(e.compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return false, fmt.Errorf("eval access policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("access policy query returned no result")
	}
	allow, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("access policy allow is not a boolean")
	}
	return allow, nil
}
