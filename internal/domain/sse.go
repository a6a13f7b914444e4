package domain

// RemoteInvokeRequest is the body posted to a remote handler's /invoke endpoint.
type RemoteInvokeRequest struct {
	HandlerID string     `json:"handler_id"`
	ThreadID  string     `json:"thread_id"`
	RequestID string     `json:"request_id"`
	Query     string     `json:"query"`
	User      User       `json:"user"`
	Context   []string   `json:"context,omitempty"`
	Prior     []Fragment `json:"prior,omitempty"`
}

// HandoffEventData is the data of a handoff SSE event.
type HandoffEventData struct {
	Next string `json:"next"`
}

// DoneEventData is the data for a done SSE event.
type DoneEventData struct {
	Sources []string `json:"sources,omitempty"`
}

// ErrorEventData is the data for an error SSE event.
type ErrorEventData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
