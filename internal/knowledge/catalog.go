// Package knowledge is the record store handlers ground their answers on.
package knowledge

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xiaot623/gogo/assistant/internal/domain"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Record is one grounded fact with its sensitivity tags.
type Record struct {
	ID       string   `yaml:"id"`
	Domain   string   `yaml:"domain"`
	Project  string   `yaml:"project"`
	Overview bool     `yaml:"overview"`
	Keywords []string `yaml:"keywords"`
	Subject  string   `yaml:"subject"`
	Text     string   `yaml:"text"`
	Amount   *float64 `yaml:"amount"`
	Level    int      `yaml:"level"`
	Kind     string   `yaml:"kind"`
	Source   string   `yaml:"source"`
}

// Fragment converts the record into a tagged answer fragment.
func (r Record) Fragment(handlerID string) domain.Fragment {
	return domain.Fragment{
		Text:      r.Text,
		Level:     domain.SensitivityLevel(r.Level),
		Kind:      domain.FieldKind(r.Kind),
		Project:   r.Project,
		Subject:   r.Subject,
		Amount:    r.Amount,
		HandlerID: handlerID,
	}
}

// Pattern selects records.
type Pattern struct {
	Domain string
	Terms  []string
	// Projects limits project-bound records when AllProjects is false.
	Projects    []string
	AllProjects bool
	Limit       int
}

// Store answers record queries.
type Store interface {
	Query(ctx context.Context, p Pattern) ([]Record, error)
}

// Catalog is an in-process Store loaded from YAML. It is read-only.
type Catalog struct {
	records []Record
}

type catalogFile struct {
	Records []Record `yaml:"records"`
}

// ParseCatalog decodes and validates a catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	seen := make(map[string]bool)
	for _, r := range f.Records {
		if r.ID == "" || seen[r.ID] {
			return nil, fmt.Errorf("catalog record id %q is empty or duplicated", r.ID)
		}
		seen[r.ID] = true
		if !domain.SensitivityLevel(r.Level).Valid() {
			return nil, fmt.Errorf("catalog record %s has level %d", r.ID, r.Level)
		}
		if !domain.FieldKind(r.Kind).Valid() {
			return nil, fmt.Errorf("catalog record %s has kind %q", r.ID, r.Kind)
		}
	}
	return &Catalog{records: f.Records}, nil
}

// DefaultCatalog returns the embedded seed catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadCatalog reads a catalog file. An empty path yields the default catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// Query returns matching records ranked by term hits. When no term hits, the
// domain's overview records are returned.
func (c *Catalog) Query(ctx context.Context, p Pattern) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type scored struct {
		rec   Record
		score int
	}
	var hits, overview []scored
	for _, r := range c.records {
		if p.Domain != "" && r.Domain != p.Domain {
			continue
		}
		if r.Project != "" && !p.AllProjects && !contains(p.Projects, r.Project) {
			continue
		}
		if s := match(r, p.Terms); s > 0 {
			hits = append(hits, scored{r, s})
		} else if r.Overview {
			overview = append(overview, scored{r, 0})
		}
	}
	if len(hits) == 0 {
		hits = overview
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].rec.ID < hits[j].rec.ID
	})
	if p.Limit > 0 && len(hits) > p.Limit {
		hits = hits[:p.Limit]
	}
	out := make([]Record, len(hits))
	for i, h := range hits {
		out[i] = h.rec
	}
	return out, nil
}

func match(r Record, terms []string) int {
	score := 0
	for _, t := range terms {
		for _, k := range r.Keywords {
			if k == t {
				score++
				break
			}
		}
	}
	return score
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
