package mcpserver_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silbaram/elasticsearch-mcp-server/internal/adapter/inbound/mcpserver"
	"github.com/silbaram/elasticsearch-mcp-server/internal/usecase"
)

// TestSSE_FullFlow drives the SSE transport with a real MCP client: list the
// tools, write a document, then read it back.
func TestSSE_FullFlow(t *testing.T) {
	s := newStack(t)
	addr := freeAddr(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- mcpserver.Run(ctx, s.srv, mcpserver.TransportOptions{
			Kind:            mcpserver.TransportSSE,
			ListenAddr:      addr,
			ShutdownTimeout: time.Second,
		}, testLogger())
	}()
	defer func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("sse transport did not stop")
		}
	}()

	c, err := client.NewSSEMCPClient("http://" + addr + "/sse")
	require.NoError(t, err)
	defer c.Close()

	callCtx, callCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer callCancel()

	require.Eventually(t, func() bool {
		return c.Start(callCtx) == nil
	}, 3*time.Second, 50*time.Millisecond)

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "sse-test", Version: "1.0.0"}
	initRes, err := c.Initialize(callCtx, initReq)
	require.NoError(t, err)
	assert.Equal(t, mcpserver.ServerName, initRes.ServerInfo.Name)

	t.Run("list tools", func(t *testing.T) {
		res, err := c.ListTools(callCtx, mcp.ListToolsRequest{})
		require.NoError(t, err)
		require.Len(t, res.Tools, len(usecase.Catalog()))

		var mappings *mcp.Tool
		for i := range res.Tools {
			if res.Tools[i].Name == usecase.ToolGetMappings {
				mappings = &res.Tools[i]
			}
		}
		require.NotNil(t, mappings, "get_mappings tool not found")
		require.NotNil(t, mappings.Annotations.ReadOnlyHint)
		assert.True(t, *mappings.Annotations.ReadOnlyHint)
	})

	t.Run("write then read", func(t *testing.T) {
		write := mcp.CallToolRequest{}
		write.Params.Name = usecase.ToolIndexDocument
		write.Params.Arguments = map[string]any{
			"index":    "notes",
			"id":       "n-1",
			"document": map[string]any{"body": "hello over sse"},
			"refresh":  true,
		}
		res, err := c.CallTool(callCtx, write)
		require.NoError(t, err)
		assert.False(t, res.IsError)

		read := mcp.CallToolRequest{}
		read.Params.Name = usecase.ToolGetDocument
		read.Params.Arguments = map[string]any{"index": "notes", "id": "n-1"}
		res, err = c.CallTool(callCtx, read)
		require.NoError(t, err)
		require.False(t, res.IsError)
		require.Len(t, res.Content, 1)

		text, ok := mcp.AsTextContent(res.Content[0])
		require.True(t, ok)
		var env struct {
			OK     bool `json:"ok"`
			Result struct {
				Source map[string]any `json:"source"`
			} `json:"result"`
		}
		require.NoError(t, json.Unmarshal([]byte(text.Text), &env))
		assert.True(t, env.OK)
		assert.Equal(t, "hello over sse", env.Result.Source["body"])
	})
}
