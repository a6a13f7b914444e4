// Package domain defines the core domain models for the assistant.
package domain

import "fmt"

// Role is the business role carried by a validated user context.
type Role string

const (
	RoleLeadership       Role = "leadership"
	RoleDirector         Role = "director"
	RoleSalesperson      Role = "salesperson"
	RoleCreativeDirector Role = "creative_director"
)

// Roles lists every role in a stable order.
var Roles = []Role{RoleLeadership, RoleDirector, RoleSalesperson, RoleCreativeDirector}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole converts a claim value into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// SensitivityLevel ranks how restricted a piece of information is.
// 1 is the most restricted, 6 the least.
type SensitivityLevel int

const (
	LevelRestricted   SensitivityLevel = 1 // exact budgets, margins
	LevelConfidential SensitivityLevel = 2 // project budgets, deal financials
	LevelStrategic    SensitivityLevel = 3
	LevelPersonnel    SensitivityLevel = 4 // talent and union details
	LevelInternal     SensitivityLevel = 5
	LevelPublic       SensitivityLevel = 6 // sales materials
)

const (
	MinSensitivity = LevelRestricted
	MaxSensitivity = LevelPublic
)

// Valid reports whether the level is inside the 1..6 taxonomy.
func (l SensitivityLevel) Valid() bool {
	return l >= MinSensitivity && l <= MaxSensitivity
}

// FieldKind distinguishes the special-case content carried by a fragment.
type FieldKind string

const (
	FieldGeneral   FieldKind = "general"
	FieldBudget    FieldKind = "budget"
	FieldFinancial FieldKind = "financial"
	FieldUnion     FieldKind = "union"
)

// Valid reports whether k is a known field kind.
func (k FieldKind) Valid() bool {
	switch k {
	case FieldGeneral, FieldBudget, FieldFinancial, FieldUnion:
		return true
	}
	return false
}

// BudgetAccessMode controls how budget fragments reach a role.
type BudgetAccessMode string

const (
	BudgetFull            BudgetAccessMode = "full"
	BudgetProjectSpecific BudgetAccessMode = "project_specific"
	BudgetRangesOnly      BudgetAccessMode = "ranges_only"
	BudgetNone            BudgetAccessMode = "none"
)

// ProjectAccessMode scopes which projects a role's handlers may ground on.
type ProjectAccessMode string

const (
	ProjectAll          ProjectAccessMode = "all"
	ProjectAssignedOnly ProjectAccessMode = "assigned_only"
)

// RoutingMode selects how many handlers answer a query.
type RoutingMode string

const (
	RoutingSingle RoutingMode = "single"
	RoutingMulti  RoutingMode = "multi"
	RoutingAuto   RoutingMode = "auto"
)

// Valid reports whether m is a known routing mode.
func (m RoutingMode) Valid() bool {
	switch m {
	case RoutingSingle, RoutingMulti, RoutingAuto:
		return true
	}
	return false
}

// MemoryKind classifies a memory record.
type MemoryKind string

const (
	MemoryProfile        MemoryKind = "profile"
	MemoryEpisodic       MemoryKind = "episodic"
	MemorySemantic       MemoryKind = "semantic"
	MemoryProjectContext MemoryKind = "project_context"
)

// Valid reports whether k is a known memory kind.
func (k MemoryKind) Valid() bool {
	switch k {
	case MemoryProfile, MemoryEpisodic, MemorySemantic, MemoryProjectContext:
		return true
	}
	return false
}

// MemoryStatus tracks a record through consolidation.
type MemoryStatus string

const (
	MemoryPending    MemoryStatus = "pending"
	MemoryActive     MemoryStatus = "active"
	MemorySuperseded MemoryStatus = "superseded"
)

// Sender identifies who wrote a conversation message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// FilterDecision is the outcome of the security filter for one fragment.
type FilterDecision string

const (
	DecisionPass   FilterDecision = "pass"
	DecisionDrop   FilterDecision = "drop"
	DecisionBucket FilterDecision = "bucket"
)
