package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func input(kind string, level int, mode string, project string, assigned []string) map[string]interface{} {
	return map[string]interface{}{
		"fragment": map[string]interface{}{"kind": kind, "level": level, "project": project},
		"permission": map[string]interface{}{
			"allowed_levels":    []int{1, 2, 3, 4, 5, 6},
			"budget_mode":       mode,
			"financial_allowed": false,
			"union_allowed":     true,
		},
		"user": map[string]interface{}{"assigned_projects": assigned},
	}
}

func TestDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	cases := []struct {
		name     string
		in       map[string]interface{}
		decision string
		reason   string
	}{
		{"budget full", input("budget", 1, "full", "", []string{}), "pass", ""},
		{"budget assigned", input("budget", 1, "project_specific", "P1", []string{"P1"}), "pass", ""},
		{"budget unassigned", input("budget", 1, "project_specific", "P2", []string{"P1"}), "drop", "project_not_assigned"},
		{"budget ranges", input("budget", 2, "ranges_only", "", []string{}), "bucket", "ranges_only"},
		{"budget none", input("budget", 2, "none", "", []string{}), "drop", "budget_not_allowed"},
		{"financial", input("financial", 2, "full", "", []string{}), "drop", "financial_not_allowed"},
		{"union", input("union", 4, "full", "", []string{}), "pass", ""},
		{"level", input("general", 7, "full", "", []string{}), "drop", "level_not_allowed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision, reason, err := engine.Evaluate(ctx, tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.decision, decision)
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestNewEngineRejectsBadPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package broken\nverdict := {")
	assert.Error(t, err)
}
