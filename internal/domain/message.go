package domain

import "time"

// Message is one entry of a conversation thread.
type Message struct {
	ID        string    `json:"message_id"`
	ThreadID  string    `json:"thread_id"`
	UserID    string    `json:"user_id,omitempty"`
	Seq       int64     `json:"seq"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	Handlers  []string  `json:"handlers,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PageRequest selects a window of a thread's history.
// Cursor is the sequence number of the last message already seen.
type PageRequest struct {
	Cursor int64
	Limit  int
}

// Page is one window of history.
type Page struct {
	Messages   []Message `json:"messages"`
	NextCursor int64     `json:"next_cursor"`
	HasMore    bool      `json:"has_more"`
}
