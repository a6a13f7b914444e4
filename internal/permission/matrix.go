// Package permission holds the role permission matrix used by the security filter.
package permission

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/xiaot623/gogo/assistant/internal/domain"
)

// ErrInvalidMatrix is returned when a matrix is not total or carries unknown values.
var ErrInvalidMatrix = errors.New("invalid permission matrix")

// LevelSet is a set of sensitivity levels. Index 0 is unused.
type LevelSet [domain.MaxSensitivity + 1]bool

// Levels builds a LevelSet.
func Levels(levels ...domain.SensitivityLevel) LevelSet {
	var s LevelSet
	for _, l := range levels {
		if l.Valid() {
			s[l] = true
		}
	}
	return s
}

// Contains reports whether the level is in the set.
func (s LevelSet) Contains(l domain.SensitivityLevel) bool {
	return l.Valid() && s[l]
}

// Slice returns the levels in ascending order.
func (s LevelSet) Slice() []domain.SensitivityLevel {
	var out []domain.SensitivityLevel
	for l := domain.MinSensitivity; l <= domain.MaxSensitivity; l++ {
		if s[l] {
			out = append(out, l)
		}
	}
	return out
}

// Entry is the permission row of one role.
type Entry struct {
	AllowedLevels    LevelSet
	BudgetMode       domain.BudgetAccessMode
	ProjectAccess    domain.ProjectAccessMode
	FinancialAllowed bool
	UnionAllowed     bool
}

// Matrix maps every role to its entry. It is read-only once built.
type Matrix struct {
	entries map[domain.Role]Entry
}

// New builds a matrix from entries and validates it.
func New(entries map[domain.Role]Entry) (*Matrix, error) {
	m := &Matrix{entries: make(map[domain.Role]Entry, len(entries))}
	for role, e := range entries {
		m.entries[role] = e
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Default returns the built-in matrix.
func Default() *Matrix {
	m, err := New(map[domain.Role]Entry{
		domain.RoleLeadership: {
			AllowedLevels:    Levels(1, 2, 3, 4, 5, 6),
			BudgetMode:       domain.BudgetFull,
			ProjectAccess:    domain.ProjectAll,
			FinancialAllowed: true,
			UnionAllowed:     true,
		},
		domain.RoleDirector: {
			AllowedLevels:    Levels(1, 2, 3, 4, 5, 6),
			BudgetMode:       domain.BudgetProjectSpecific,
			ProjectAccess:    domain.ProjectAssignedOnly,
			FinancialAllowed: true,
			UnionAllowed:     true,
		},
		domain.RoleSalesperson: {
			AllowedLevels:    Levels(2, 3, 5, 6),
			BudgetMode:       domain.BudgetRangesOnly,
			ProjectAccess:    domain.ProjectAll,
			FinancialAllowed: false,
			UnionAllowed:     false,
		},
		domain.RoleCreativeDirector: {
			AllowedLevels:    Levels(2, 3, 4, 5, 6),
			BudgetMode:       domain.BudgetRangesOnly,
			ProjectAccess:    domain.ProjectAssignedOnly,
			FinancialAllowed: false,
			UnionAllowed:     true,
		},
	})
	if err != nil {
		panic(err)
	}
	return m
}

// Validate checks that every role has an entry and that each entry is well formed.
func (m *Matrix) Validate() error {
	for _, role := range domain.Roles {
		if _, ok := m.entries[role]; !ok {
			return fmt.Errorf("%w: missing role %s", ErrInvalidMatrix, role)
		}
	}
	for role, e := range m.entries {
		if !role.Valid() {
			return fmt.Errorf("%w: unknown role %s", ErrInvalidMatrix, role)
		}
		switch e.BudgetMode {
		case domain.BudgetFull, domain.BudgetProjectSpecific, domain.BudgetRangesOnly, domain.BudgetNone:
		default:
			return fmt.Errorf("%w: role %s has budget mode %q", ErrInvalidMatrix, role, e.BudgetMode)
		}
		switch e.ProjectAccess {
		case domain.ProjectAll, domain.ProjectAssignedOnly:
		default:
			return fmt.Errorf("%w: role %s has project access %q", ErrInvalidMatrix, role, e.ProjectAccess)
		}
	}
	return nil
}

// Lookup returns the entry for a role. ok is false for unknown roles.
func (m *Matrix) Lookup(role domain.Role) (Entry, bool) {
	e, ok := m.entries[role]
	return e, ok
}

// Roles returns the roles in the matrix in sorted order.
func (m *Matrix) Roles() []domain.Role {
	roles := make([]domain.Role, 0, len(m.entries))
	for r := range m.entries {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

type fileEntry struct {
	AllowedLevels    []int  `yaml:"allowed_levels"`
	BudgetMode       string `yaml:"budget_mode"`
	ProjectAccess    string `yaml:"project_access"`
	FinancialAllowed bool   `yaml:"financial_allowed"`
	UnionAllowed     bool   `yaml:"union_allowed"`
}

type fileMatrix struct {
	Roles map[string]fileEntry `yaml:"roles"`
}

// Parse decodes a YAML matrix and validates it for totality.
func Parse(data []byte) (*Matrix, error) {
	var fm fileMatrix
	if err := yaml.Unmarshal(data, &fm); err != nil {
		return nil, fmt.Errorf("failed to parse permission matrix: %w", err)
	}
	entries := make(map[domain.Role]Entry, len(fm.Roles))
	for name, fe := range fm.Roles {
		role, err := domain.ParseRole(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMatrix, err)
		}
		var levels LevelSet
		for _, l := range fe.AllowedLevels {
			lvl := domain.SensitivityLevel(l)
			if !lvl.Valid() {
				return nil, fmt.Errorf("%w: role %s has level %d", ErrInvalidMatrix, role, l)
			}
			levels[lvl] = true
		}
		entries[role] = Entry{
			AllowedLevels:    levels,
			BudgetMode:       domain.BudgetAccessMode(fe.BudgetMode),
			ProjectAccess:    domain.ProjectAccessMode(fe.ProjectAccess),
			FinancialAllowed: fe.FinancialAllowed,
			UnionAllowed:     fe.UnionAllowed,
		}
	}
	return New(entries)
}

// Load reads a matrix file. An empty path yields the default matrix.
func Load(path string) (*Matrix, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read permission matrix: %w", err)
	}
	return Parse(data)
}
