// Package unionrules is the client for the external union-rule source.
package unionrules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when the source has no rules for a union.
var ErrNotFound = errors.New("union rules not found")

// Rule summarizes the working rules of one union.
type Rule struct {
	Union          string  `json:"union"`
	Summary        string  `json:"summary"`
	MinimumDayRate float64 `json:"minimum_day_rate,omitempty"`
	UpdatedAt      string  `json:"updated_at,omitempty"`
}

// Client fetches union rules over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new union rules client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Lookup returns the rules for a union.
func (c *Client) Lookup(ctx context.Context, union string) (*Rule, error) {
	endpoint := c.baseURL + "/v1/unions/" + url.PathEscape(union) + "/rules"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch union rules: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("union rules returned status %d: %s", resp.StatusCode, string(body))
	}

	var rule Rule
	if err := json.NewDecoder(resp.Body).Decode(&rule); err != nil {
		return nil, fmt.Errorf("failed to decode union rules: %w", err)
	}
	if rule.Union == "" {
		rule.Union = union
	}
	return &rule, nil
}
