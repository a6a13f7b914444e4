package domain

import "time"

// MemoryRecord is one fact kept in long-term memory.
type MemoryRecord struct {
	ID           string       `json:"id"`
	Namespace    string       `json:"namespace"`
	Kind         MemoryKind   `json:"kind"`
	Key          string       `json:"key"`
	Entity       string       `json:"entity"`
	Predicate    string       `json:"predicate"`
	Fact         string       `json:"fact"`
	Confidence   float64      `json:"confidence"`
	ObservedAt   time.Time    `json:"observed_at"`
	Embedding    []float32    `json:"-"`
	Status       MemoryStatus `json:"status"`
	SupersededBy string       `json:"superseded_by,omitempty"`
	Score        float64      `json:"score,omitempty"`
}

// Interaction is a completed, filtered exchange handed to memory extraction.
type Interaction struct {
	User       User
	ThreadID   string
	Query      string
	Response   string
	Handlers   []string
	ObservedAt time.Time
}
