// Package handlers holds the domain handlers that answer routed queries and
// the pool that invokes them.
package handlers

import (
	"context"
	"time"

	"github.com/xiaot623/gogo/assistant/internal/domain"
)

// Capability is what a handler advertises to the router.
type Capability struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Domains  []string `json:"domains" yaml:"domains"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	// Fallback marks the general handler used for low-confidence queries.
	Fallback bool `json:"fallback,omitempty" yaml:"fallback"`
}

// ProjectScope limits which project-bound knowledge a handler may draw on.
type ProjectScope struct {
	All      bool
	Projects []string
}

// Request is the input of one handler invocation.
type Request struct {
	RequestID string
	Query     string
	User      domain.User
	ThreadID  string
	Scope     ProjectScope
	// Context holds recent messages of the thread, oldest first.
	Context []string
	// Memory holds retrieved facts. It is soft context, never required.
	Memory []domain.MemoryRecord
	// Prior holds fragments produced by earlier hops of a handoff chain.
	Prior []domain.Fragment
}

// Outcome is either a final response or a handoff to another handler with
// the partial response produced so far.
type Outcome struct {
	Response domain.AgentResponse
	Next     string
}

// Final ends the chain with resp.
func Final(resp domain.AgentResponse) Outcome {
	return Outcome{Response: resp}
}

// Continue hands off to next, keeping partial.
func Continue(next string, partial domain.AgentResponse) Outcome {
	return Outcome{Response: partial, Next: next}
}

// IsFinal reports whether the outcome ends the chain.
func (o Outcome) IsFinal() bool {
	return o.Next == ""
}

// Handler answers queries for one domain.
type Handler interface {
	ID() string
	Capability() Capability
	Handle(ctx context.Context, req Request) (Outcome, error)
}

// Result is the pool's report of one invocation. An unavailable handler is a
// result, not an error of the caller.
type Result struct {
	HandlerID string
	Outcome   Outcome
	// Err wraps domain.ErrHandlerUnavailable when the handler made no contribution.
	Err      error
	Reason   string
	Duration time.Duration
}

// Unavailable reports whether the handler failed to contribute.
func (r Result) Unavailable() bool {
	return r.Err != nil
}
