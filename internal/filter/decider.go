package filter

import (
	"context"

	"github.com/xiaot623/gogo/assistant/internal/domain"
	"github.com/xiaot623/gogo/assistant/internal/permission"
	"github.com/xiaot623/gogo/assistant/policy"
)

// Reason codes recorded in the audit log. They never reach a caller.
const (
	ReasonLevelNotAllowed     = "level_not_allowed"
	ReasonProjectNotAssigned  = "project_not_assigned"
	ReasonRangesOnly          = "ranges_only"
	ReasonBudgetNotAllowed    = "budget_not_allowed"
	ReasonFinancialNotAllowed = "financial_not_allowed"
	ReasonUnionNotAllowed     = "union_not_allowed"
	ReasonUnknownKind         = "unknown_kind"
	ReasonNoFigure            = "budget_figure_unrecoverable"
	ReasonMalformedBucket     = "budget_bucket_malformed"
	ReasonEvaluationError     = "evaluation_error"
)

// Input is everything a Decider may look at for one fragment.
type Input struct {
	Fragment domain.Fragment
	Entry    permission.Entry
	User     domain.User
}

// Verdict is a Decider's answer for one fragment.
type Verdict struct {
	Decision domain.FilterDecision
	Reason   string
}

// Decider maps one fragment to a decision. Implementations must be pure.
type Decider interface {
	Decide(ctx context.Context, in Input) (Verdict, error)
}

// StaticDecider evaluates the permission rules in Go.
type StaticDecider struct{}

// Decide implements Decider.
func (StaticDecider) Decide(_ context.Context, in Input) (Verdict, error) {
	f, e := in.Fragment, in.Entry
	if !e.AllowedLevels.Contains(f.Level) {
		return Verdict{domain.DecisionDrop, ReasonLevelNotAllowed}, nil
	}
	switch f.Kind {
	case domain.FieldBudget:
		switch e.BudgetMode {
		case domain.BudgetFull:
			return Verdict{Decision: domain.DecisionPass}, nil
		case domain.BudgetProjectSpecific:
			if in.User.HasProject(f.Project) {
				return Verdict{Decision: domain.DecisionPass}, nil
			}
			return Verdict{domain.DecisionDrop, ReasonProjectNotAssigned}, nil
		case domain.BudgetRangesOnly:
			return Verdict{domain.DecisionBucket, ReasonRangesOnly}, nil
		default:
			return Verdict{domain.DecisionDrop, ReasonBudgetNotAllowed}, nil
		}
	case domain.FieldFinancial:
		if !e.FinancialAllowed {
			return Verdict{domain.DecisionDrop, ReasonFinancialNotAllowed}, nil
		}
	case domain.FieldUnion:
		if !e.UnionAllowed {
			return Verdict{domain.DecisionDrop, ReasonUnionNotAllowed}, nil
		}
	}
	return Verdict{Decision: domain.DecisionPass}, nil
}

// RegoDecider evaluates the permission rules with the OPA policy engine.
type RegoDecider struct {
	engine *policy.Engine
}

// NewRegoDecider wraps a prepared policy engine.
func NewRegoDecider(engine *policy.Engine) *RegoDecider {
	return &RegoDecider{engine: engine}
}

// Decide implements Decider.
func (d *RegoDecider) Decide(ctx context.Context, in Input) (Verdict, error) {
	levels := []int{}
	for _, l := range in.Entry.AllowedLevels.Slice() {
		levels = append(levels, int(l))
	}
	assigned := append([]string{}, in.User.AssignedProjects...)

	input := map[string]interface{}{
		"fragment": map[string]interface{}{
			"kind":    string(in.Fragment.Kind),
			"level":   int(in.Fragment.Level),
			"project": in.Fragment.Project,
		},
		"permission": map[string]interface{}{
			"allowed_levels":    levels,
			"budget_mode":       string(in.Entry.BudgetMode),
			"financial_allowed": in.Entry.FinancialAllowed,
			"union_allowed":     in.Entry.UnionAllowed,
		},
		"user": map[string]interface{}{
			"assigned_projects": assigned,
		},
	}

	decision, reason, err := d.engine.Evaluate(ctx, input)
	if err != nil {
		return Verdict{}, err
	}
	switch domain.FilterDecision(decision) {
	case domain.DecisionPass, domain.DecisionDrop, domain.DecisionBucket:
		return Verdict{Decision: domain.FilterDecision(decision), Reason: reason}, nil
	}
	return Verdict{domain.DecisionDrop, ReasonEvaluationError}, nil
}
