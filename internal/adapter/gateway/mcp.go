package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"relayd/internal/domain"
)

// mcpHandler exposes the relay operations as MCP tools mounted at /mcp, so
// agent frameworks that speak MCP can register, relay and poll without a
// bespoke HTTP client. The tools call the same services as the JSON routes.
func (s *Server) mcpHandler() http.Handler {
	m := server.NewMCPServer("relayd", "1.0.0",
		server.WithToolCapabilities(false),
	)

	m.AddTool(mcp.NewTool("register_agent",
		mcp.WithDescription("Register an agent's callback URL. Re-registering a name overwrites the previous URL."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Agent name")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Callback URL messages for this agent are pushed to")),
	), s.mcpRegister)

	m.AddTool(mcp.NewTool("relay_message",
		mcp.WithDescription("Relay a message to the agent named in the session id (\"sender:recipient\")."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Composite \"sender:recipient\" id")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Message payload")),
	), s.mcpRelay)

	m.AddTool(mcp.NewTool("poll_messages",
		mcp.WithDescription("Atomically drain and return all pending messages for an agent."),
		mcp.WithString("agent", mcp.Required(), mcp.Description("Agent name to poll")),
	), s.mcpPoll)

	return server.NewStreamableHTTPServer(m)
}

func (s *Server) mcpRegister(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	url, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	entry, err := s.deps.Registry.Register(ctx, name, url)
	if err != nil {
		return mcpError(err), nil
	}
	return mcpJSON(registerResponse{Status: "registered", Name: entry.Name, URL: entry.CallbackURL})
}

func (s *Server) mcpRelay(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	message, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.metrics.RelayCalls.Add(1)
	outcome, err := s.deps.Dispatcher.Relay(ctx, sessionID, message)
	if err != nil {
		return mcpError(err), nil
	}
	return mcpJSON(outcome)
}

func (s *Server) mcpPoll(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agent, err := req.RequireString("agent")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	messages, err := s.deps.Queue.Drain(ctx, agent)
	if err != nil {
		return mcpError(err), nil
	}
	if messages == nil {
		messages = []string{}
	}
	return mcpJSON(pollResponse{Messages: messages})
}

// mcpJSON renders the same response bodies the JSON routes use as tool text.
func mcpJSON(body any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// mcpError mirrors writeError: store detail is not echoed verbatim, the
// error code still identifies the failure class.
func mcpError(err error) *mcp.CallToolResult {
	msg := err.Error()
	if statusForError(err) == http.StatusInternalServerError {
		msg = "storage unavailable"
	}
	data, _ := json.Marshal(errorResponse{Error: msg, Code: string(domain.ErrorCodeOf(err))})
	return mcp.NewToolResultError(string(data))
}
