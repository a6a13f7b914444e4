package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

// Engine is the OPA policy engine behind the fragment filter.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.assistant.filter.verdict"),
		rego.Module("fragment_filter.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate runs the fragment policy.
// Input carries fragment, permission and user objects.
// Returns: decision (pass, drop, bucket), reason, error
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (string, string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	// The policy has a default, so an empty result means the module is broken. Fail closed.
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return "drop", "undefined", nil
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return "drop", "unexpected_result", nil
	}
	decision, _ := obj["decision"].(string)
	reason, _ := obj["reason"].(string)
	if decision == "" {
		return "drop", "unexpected_result", nil
	}
	return decision, reason, nil
}

// DefaultPolicy encodes the per-fragment permission rules.
// Rules are evaluated top to bottom; the first match wins.
const DefaultPolicy = `
package assistant.filter

default verdict := {"decision": "drop", "reason": "undefined"}

verdict := {"decision": "drop", "reason": "level_not_allowed"} if {
	not level_allowed
} else := {"decision": "pass", "reason": ""} if {
	input.fragment.kind == "budget"
	input.permission.budget_mode == "full"
} else := {"decision": "pass", "reason": ""} if {
	input.fragment.kind == "budget"
	input.permission.budget_mode == "project_specific"
	input.fragment.project != ""
	input.fragment.project in input.user.assigned_projects
} else := {"decision": "drop", "reason": "project_not_assigned"} if {
	input.fragment.kind == "budget"
	input.permission.budget_mode == "project_specific"
} else := {"decision": "bucket", "reason": "ranges_only"} if {
	input.fragment.kind == "budget"
	input.permission.budget_mode == "ranges_only"
} else := {"decision": "drop", "reason": "budget_not_allowed"} if {
	input.fragment.kind == "budget"
} else := {"decision": "drop", "reason": "financial_not_allowed"} if {
	input.fragment.kind == "financial"
	not input.permission.financial_allowed
} else := {"decision": "drop", "reason": "union_not_allowed"} if {
	input.fragment.kind == "union"
	not input.permission.union_allowed
} else := {"decision": "pass", "reason": ""}

level_allowed if {
	some level in input.permission.allowed_levels
	level == input.fragment.level
}
`
