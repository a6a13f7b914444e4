// Package mcptools exposes the assistant as MCP tools over stdio.
//
// Every tool follows the same shape: a struct holding the assistant and the
// session user, Definition returning the schema and Handle serving the call.
// The stdio session belongs to one user, fixed when the server starts.
package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/xiaot623/gogo/assistant/internal/domain"
)

// Assistant is the pipeline behind the tools.
type Assistant interface {
	HandleQuery(ctx context.Context, query string, user domain.User, threadID string) (*domain.FilteredResponse, error)
	GetHistory(ctx context.Context, user domain.User, threadID string, page domain.PageRequest) (*domain.Page, error)
	GetMemory(ctx context.Context, user domain.User, namespace, query string, limit int) ([]domain.MemoryRecord, error)
}

// NewServer builds an MCP server with the ask, history and recall tools.
func NewServer(a Assistant, user domain.User, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"bi-assistant",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions("Ask business questions about sales, talent, bidding and leadership. "+
			"Answers are filtered for the signed-in role."),
	)

	ask := NewAskTool(a, user)
	s.AddTool(ask.Definition(), ask.Handle)

	history := NewHistoryTool(a, user)
	s.AddTool(history.Definition(), history.Handle)

	recall := NewRecallTool(a, user)
	s.AddTool(recall.Definition(), recall.Handle)

	return s
}

// errorResult turns a pipeline error into a tool error carrying only the
// user-facing message.
func errorResult(err error) *mcp.CallToolResult {
	resp := domain.ToResponse(err)
	return mcp.NewToolResultError(fmt.Sprintf("%s: %s", resp.Code, resp.Message))
}

// intArg extracts an integer argument; JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// AskTool handles the ask tool.
type AskTool struct {
	assistant Assistant
	user      domain.User
}

// NewAskTool creates an AskTool.
func NewAskTool(a Assistant, user domain.User) *AskTool {
	return &AskTool{assistant: a, user: user}
}

// Definition returns the MCP tool definition for ask.
func (t *AskTool) Definition() mcp.Tool {
	return mcp.NewTool("ask",
		mcp.WithDescription("Ask the business assistant a question. Pass thread_id to continue a conversation."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The question in natural language"),
		),
		mcp.WithString("thread_id",
			mcp.Description("Thread to continue; omit to start a new one"),
		),
	)
}

// Handle processes the ask tool call.
func (t *AskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	resp, err := t.assistant.HandleQuery(ctx, query, t.user, req.GetString("thread_id", ""))
	if err != nil {
		return errorResult(err), nil
	}

	var b strings.Builder
	b.WriteString(resp.Text())
	if resp.Meta != nil {
		fmt.Fprintf(&b, "\n\n[thread %s | handlers: %s]", resp.Meta.ThreadID, strings.Join(resp.Meta.Handlers, ", "))
	}
	return mcp.NewToolResultText(b.String()), nil
}

// HistoryTool handles the history tool.
type HistoryTool struct {
	assistant Assistant
	user      domain.User
}

// NewHistoryTool creates a HistoryTool.
func NewHistoryTool(a Assistant, user domain.User) *HistoryTool {
	return &HistoryTool{assistant: a, user: user}
}

// Definition returns the MCP tool definition for history.
func (t *HistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("history",
		mcp.WithDescription("Read the messages of one of your conversation threads, oldest first."),
		mcp.WithString("thread_id",
			mcp.Required(),
			mcp.Description("Thread to read"),
		),
		mcp.WithNumber("cursor",
			mcp.Description("Sequence number of the last message already seen (default: 0)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max messages (default: 50, max: 200)"),
		),
	)
}

// Handle processes the history tool call.
func (t *HistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	threadID := req.GetString("thread_id", "")
	if threadID == "" {
		return mcp.NewToolResultError("'thread_id' is required"), nil
	}
	page, err := t.assistant.GetHistory(ctx, t.user, threadID, domain.PageRequest{
		Cursor: int64(intArg(req, "cursor", 0)),
		Limit:  intArg(req, "limit", 0),
	})
	if err != nil {
		return errorResult(err), nil
	}
	if len(page.Messages) == 0 {
		return mcp.NewToolResultText("No messages."), nil
	}

	var b strings.Builder
	for _, m := range page.Messages {
		fmt.Fprintf(&b, "#%d %s: %s\n", m.Seq, m.Sender, m.Content)
	}
	if page.HasMore {
		fmt.Fprintf(&b, "\nMore messages follow; continue with cursor %d.", page.NextCursor)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// RecallTool handles the recall tool.
type RecallTool struct {
	assistant Assistant
	user      domain.User
}

// NewRecallTool creates a RecallTool.
func NewRecallTool(a Assistant, user domain.User) *RecallTool {
	return &RecallTool{assistant: a, user: user}
}

// Definition returns the MCP tool definition for recall.
func (t *RecallTool) Definition() mcp.Tool {
	return mcp.NewTool("recall",
		mcp.WithDescription("List what the assistant remembers about you, ranked against an optional query."),
		mcp.WithString("query",
			mcp.Description("What to look for"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max records (default: 5)"),
		),
	)
}

// Handle processes the recall tool call.
func (t *RecallTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, err := t.assistant.GetMemory(ctx, t.user, "", req.GetString("query", ""), intArg(req, "limit", 0))
	if err != nil {
		return errorResult(err), nil
	}
	if len(records) == 0 {
		return mcp.NewToolResultText("Nothing remembered yet."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d memories:\n\n", len(records))
	for i, r := range records {
		fmt.Fprintf(&b, "[%d] %s (%s, confidence %.2f)\n", i+1, r.Fact, r.Kind, r.Confidence)
	}
	return mcp.NewToolResultText(b.String()), nil
}
