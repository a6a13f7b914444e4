// Package router classifies a query and picks the handlers that answer it.
package router

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xiaot623/gogo/assistant/internal/domain"
	"github.com/xiaot623/gogo/assistant/internal/handlers"
	"github.com/xiaot623/gogo/assistant/internal/textutil"
)

// Priority breaks confidence ties when the thread has no recent handler.
// Handlers not listed come after, ordered by id.
var Priority = []string{handlers.SalesID, handlers.TalentID, handlers.BiddingID, handlers.LeadershipID}

const (
	DefaultThreshold     = 0.5
	DefaultMaxQueryRunes = 4000

	contextWeight = 0.5
)

// Candidate is a handler selected for a query.
type Candidate struct {
	HandlerID  string  `json:"handler_id"`
	Confidence float64 `json:"confidence"`
}

// Decision is the outcome of routing. Mode is the resolved mode, never auto.
type Decision struct {
	Mode          domain.RoutingMode `json:"mode"`
	Candidates    []Candidate        `json:"candidates"`
	LowConfidence bool               `json:"low_confidence"`
}

// HandlerIDs returns the candidate ids in order.
func (d Decision) HandlerIDs() []string {
	out := make([]string, len(d.Candidates))
	for i, c := range d.Candidates {
		out[i] = c.HandlerID
	}
	return out
}

// Context is the soft conversational context of a query.
type Context struct {
	// Recent holds recent message texts of the thread.
	Recent []string
	// RecentHandlers holds handlers that answered in the thread, most recent first.
	RecentHandlers []string
}

// Config tunes the router.
type Config struct {
	Mode          domain.RoutingMode
	Threshold     float64
	MaxQueryRunes int
	// MaxCandidates caps multi-mode fan-out; 0 fans out to every qualified handler.
	MaxCandidates int
}

// Router is immutable after New and safe for concurrent use.
type Router struct {
	caps     []handlers.Capability
	fallback string
	cfg      Config
}

// New creates a router over the advertised capabilities. Exactly one
// capability must be marked as the fallback.
func New(caps []handlers.Capability, cfg Config) (*Router, error) {
	if cfg.Mode == "" {
		cfg.Mode = domain.RoutingSingle
	}
	if !cfg.Mode.Valid() {
		return nil, fmt.Errorf("unknown routing mode %q", cfg.Mode)
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.MaxQueryRunes <= 0 {
		cfg.MaxQueryRunes = DefaultMaxQueryRunes
	}
	if cfg.MaxCandidates < 0 {
		cfg.MaxCandidates = 0
	}

	r := &Router{cfg: cfg}
	for _, c := range caps {
		if c.Fallback {
			if r.fallback != "" {
				return nil, fmt.Errorf("more than one fallback handler: %s, %s", r.fallback, c.ID)
			}
			r.fallback = c.ID
			continue
		}
		c.Keywords = lower(c.Keywords)
		c.Domains = lower(c.Domains)
		r.caps = append(r.caps, c)
	}
	if r.fallback == "" {
		return nil, errors.New("no fallback handler registered")
	}
	return r, nil
}

// Fallback returns the id of the general handler.
func (r *Router) Fallback() string {
	return r.fallback
}

// Route picks handlers for query. Unclassifiable input fails with
// domain.ErrRoutingFailed and no candidates.
func (r *Router) Route(query string, rc Context) (Decision, error) {
	if err := r.validate(query); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", domain.ErrRoutingFailed, err)
	}

	terms := set(textutil.Terms(query))
	ctxTerms := set(textutil.Terms(strings.Join(rc.Recent, " ")))

	var qualified []Candidate
	for _, c := range r.caps {
		s := float64(hits(c, terms)) + contextWeight*float64(hits(c, ctxTerms))
		conf := s / (s + 1)
		if conf >= r.cfg.Threshold {
			qualified = append(qualified, Candidate{HandlerID: c.ID, Confidence: conf})
		}
	}

	if len(qualified) == 0 {
		return Decision{
			Mode:          domain.RoutingSingle,
			Candidates:    []Candidate{{HandlerID: r.fallback}},
			LowConfidence: true,
		}, nil
	}

	recent := make(map[string]int, len(rc.RecentHandlers))
	for i, id := range rc.RecentHandlers {
		if _, ok := recent[id]; !ok {
			recent[id] = i
		}
	}
	sort.SliceStable(qualified, func(i, j int) bool {
		if qualified[i].Confidence != qualified[j].Confidence {
			return qualified[i].Confidence > qualified[j].Confidence
		}
		return before(qualified[i].HandlerID, qualified[j].HandlerID, recent)
	})

	mode := r.cfg.Mode
	if mode == domain.RoutingAuto {
		mode = domain.RoutingSingle
		if len(qualified) > 1 {
			mode = domain.RoutingMulti
		}
	}
	n := 1
	if mode == domain.RoutingMulti {
		n = len(qualified)
		if r.cfg.MaxCandidates > 0 {
			n = min(n, r.cfg.MaxCandidates)
		}
	}
	return Decision{Mode: mode, Candidates: qualified[:n]}, nil
}

func (r *Router) validate(query string) error {
	if !utf8.ValidString(query) {
		return errors.New("query is not valid UTF-8")
	}
	if strings.TrimSpace(query) == "" {
		return errors.New("query is empty")
	}
	if utf8.RuneCountInString(query) > r.cfg.MaxQueryRunes {
		return errors.New("query is too long")
	}
	for _, c := range query {
		if unicode.IsControl(c) && c != '\n' && c != '\t' && c != '\r' {
			return errors.New("query contains control characters")
		}
	}
	return nil
}

// before orders tied handlers: most recently successful in the thread first,
// then Priority, then id.
func before(a, b string, recent map[string]int) bool {
	ra, okA := recent[a]
	rb, okB := recent[b]
	if okA != okB {
		return okA
	}
	if okA && ra != rb {
		return ra < rb
	}
	pa, pb := priorityOf(a), priorityOf(b)
	if pa != pb {
		return pa < pb
	}
	return a < b
}

func priorityOf(id string) int {
	for i, p := range Priority {
		if p == id {
			return i
		}
	}
	return len(Priority)
}

func hits(c handlers.Capability, terms map[string]bool) int {
	n := 0
	for _, k := range c.Keywords {
		if terms[k] {
			n++
		}
	}
	for _, d := range c.Domains {
		if terms[d] && !contains(c.Keywords, d) {
			n++
		}
	}
	return n
}

func set(terms []string) map[string]bool {
	out := make(map[string]bool, len(terms))
	for _, t := range terms {
		out[t] = true
	}
	return out
}

func lower(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
