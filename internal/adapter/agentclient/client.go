// Package agentclient invokes remote handlers that stream their answer as SSE.
package agentclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xiaot623/gogo/assistant/internal/domain"
)

// SSE event names sent by remote handlers.
const (
	EventFragment = "fragment"
	EventHandoff  = "handoff"
	EventDone     = "done"
	EventError    = "error"
)

// SSEEvent represents a parsed SSE event.
type SSEEvent struct {
	Event string
	Data  string
}

// EventHandler is called for each SSE event from the remote handler.
type EventHandler func(event SSEEvent) error

// Client is an HTTP client for invoking remote handlers.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new client. The pool's per-call timeout bounds each
// invocation through the request context; timeout is a backstop.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Invoke calls a handler's /invoke endpoint and streams SSE events.
func (c *Client) Invoke(ctx context.Context, endpoint string, req *domain.RemoteInvokeRequest, handler EventHandler) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(endpoint, "/") + "/invoke"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("X-Thread-ID", req.ThreadID)
	httpReq.Header.Set("X-Request-ID", req.RequestID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to invoke handler: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("handler returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return c.parseSSE(resp.Body, handler)
}

// parseSSE parses an SSE stream and calls the handler for each event.
func (c *Client) parseSSE(reader io.Reader, handler EventHandler) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var event SSEEvent

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line marks end of event
		if line == "" {
			if event.Event != "" || event.Data != "" {
				if err := handler(event); err != nil {
					return err
				}
				event = SSEEvent{}
			}
			continue
		}

		if strings.HasPrefix(line, "event:") {
			event.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if event.Data != "" {
				event.Data += "\n" + data
			} else {
				event.Data = data
			}
		}
		// Comments and other fields are ignored.
	}

	if event.Event != "" || event.Data != "" {
		if err := handler(event); err != nil {
			return err
		}
	}

	return scanner.Err()
}

// ParseFragmentEvent parses a fragment event data.
func ParseFragmentEvent(data string) (*domain.Fragment, error) {
	var frag domain.Fragment
	if err := json.Unmarshal([]byte(data), &frag); err != nil {
		return nil, fmt.Errorf("failed to parse fragment event: %w", err)
	}
	return &frag, nil
}

// ParseHandoffEvent parses a handoff event data.
func ParseHandoffEvent(data string) (*domain.HandoffEventData, error) {
	var h domain.HandoffEventData
	if err := json.Unmarshal([]byte(data), &h); err != nil {
		return nil, fmt.Errorf("failed to parse handoff event: %w", err)
	}
	if h.Next == "" {
		return nil, fmt.Errorf("handoff event without target")
	}
	return &h, nil
}

// ParseDoneEvent parses a done event data.
func ParseDoneEvent(data string) (*domain.DoneEventData, error) {
	var done domain.DoneEventData
	if data == "" {
		return &done, nil
	}
	if err := json.Unmarshal([]byte(data), &done); err != nil {
		return nil, fmt.Errorf("failed to parse done event: %w", err)
	}
	return &done, nil
}

// ParseErrorEvent parses an error event data.
func ParseErrorEvent(data string) (*domain.ErrorEventData, error) {
	var errEvt domain.ErrorEventData
	if err := json.Unmarshal([]byte(data), &errEvt); err != nil {
		return nil, fmt.Errorf("failed to parse error event: %w", err)
	}
	return &errEvt, nil
}
