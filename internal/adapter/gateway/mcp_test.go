package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relayd/internal/domain"
	"relayd/internal/usecase"
)

func toolCall(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func toolText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	switch v := res.Content[0].(type) {
	case mcp.TextContent:
		return v.Text
	case *mcp.TextContent:
		return v.Text
	default:
		t.Fatalf("unexpected content type %T", res.Content[0])
		return ""
	}
}

func toolJSON(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(toolText(t, res)), &decoded))
	return decoded
}

func TestMCPRegisterRelayPoll(t *testing.T) {
	g := startGateway(t, usecase.ModeDurable, nil)
	ctx := context.Background()

	res, err := g.srv.mcpRegister(ctx, toolCall("register_agent", map[string]any{
		"name": "bob", "url": "http://bob.example/hook",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	body := toolJSON(t, res)
	assert.Equal(t, "registered", body["status"])
	assert.Equal(t, "bob", body["name"])

	res, err = g.srv.mcpRelay(ctx, toolCall("relay_message", map[string]any{
		"session_id": "s1:bob", "message": "ping",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, "stored_and_pushed", toolJSON(t, res)["status"])

	res, err = g.srv.mcpPoll(ctx, toolCall("poll_messages", map[string]any{"agent": "bob"}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, []any{"ping"}, toolJSON(t, res)["messages"])

	res, err = g.srv.mcpPoll(ctx, toolCall("poll_messages", map[string]any{"agent": "bob"}))
	require.NoError(t, err)
	assert.Equal(t, []any{}, toolJSON(t, res)["messages"])
}

func TestMCPRelayErrorsCarryCodes(t *testing.T) {
	g := startGateway(t, usecase.ModeDurable, nil)
	ctx := context.Background()

	res, err := g.srv.mcpRelay(ctx, toolCall("relay_message", map[string]any{
		"session_id": "no-separator", "message": "hi",
	}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.Equal(t, string(domain.CodeMalformedSessionID), toolJSON(t, res)["code"])

	res, err = g.srv.mcpRelay(ctx, toolCall("relay_message", map[string]any{
		"session_id": "s1:ghost", "message": "hi",
	}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.Equal(t, string(domain.CodeAgentNotRegistered), toolJSON(t, res)["code"])
}

func TestMCPMissingArguments(t *testing.T) {
	g := startGateway(t, usecase.ModeDurable, nil)
	ctx := context.Background()

	res, err := g.srv.mcpRegister(ctx, toolCall("register_agent", map[string]any{"name": "bob"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = g.srv.mcpPoll(ctx, toolCall("poll_messages", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestMCPEndpointMounted(t *testing.T) {
	g := startGateway(t, usecase.ModeDurable, nil)

	// The streamable HTTP transport answers on /mcp; anything but 404
	// shows the mount is wired.
	resp, err := http.Get(g.base + "/mcp")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEqual(t, 404, resp.StatusCode)
}
