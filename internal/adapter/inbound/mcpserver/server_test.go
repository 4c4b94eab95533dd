package mcpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/silbaram/elasticsearch-mcp-server/configs"
	"github.com/silbaram/elasticsearch-mcp-server/internal/adapter/inbound/mcpserver"
	"github.com/silbaram/elasticsearch-mcp-server/internal/adapter/outbound/es8"
	"github.com/silbaram/elasticsearch-mcp-server/internal/adapter/outbound/esfake"
	"github.com/silbaram/elasticsearch-mcp-server/internal/adapter/outbound/memrepo"
	"github.com/silbaram/elasticsearch-mcp-server/internal/domain"
	"github.com/silbaram/elasticsearch-mcp-server/internal/usecase"
	"github.com/silbaram/elasticsearch-mcp-server/pkg/shared/mcpjsonrpc"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockDispatcher is a mock implementation of the Dispatcher interface.
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, req domain.OperationRequest) (*domain.OperationResult, error) {
	args := m.Called(ctx, req)
	result := args.Get(0)
	if result == nil {
		return nil, args.Error(1)
	}
	return result.(*domain.OperationResult), args.Error(1)
}

type stack struct {
	fake    *esfake.Server
	binding *mcpserver.Binding
	srv     *server.MCPServer
}

func newStack(t *testing.T) stack {
	t.Helper()
	fake := esfake.New()
	t.Cleanup(fake.Close)

	tag, err := domain.ParseEngineVersion("8.18.1")
	require.NoError(t, err)
	engine, err := es8.NewEngine(configs.ElasticsearchConfig{Hosts: []string{fake.URL()}, MaxRetries: -1}.WithDefaults(), tag, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	registry := memrepo.NewInMemoryToolRegistry(testLogger())
	require.NoError(t, usecase.NewRegisterToolsUseCase(registry, testLogger()).Execute(context.Background(), usecase.Catalog()))

	dispatcher := usecase.NewDispatcher(registry, engine, 5*time.Second, nil, testLogger())
	binding := mcpserver.NewBinding(dispatcher, testLogger())
	srv := mcpserver.NewServer("test")
	require.NoError(t, binding.Register(srv, usecase.Catalog()))
	return stack{fake: fake, binding: binding, srv: srv}
}

func call(t *testing.T, b *mcpserver.Binding, tool string, args map[string]any) (*mcp.CallToolResult, map[string]any) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args
	res, err := b.Handler(tool)(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "unexpected content %T", res.Content[0])

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &env))
	return res, env
}

func TestBinding_DocumentRoundTrip(t *testing.T) {
	assert := assert.New(t)
	s := newStack(t)

	res, env := call(t, s.binding, usecase.ToolIndexDocument, map[string]any{
		"index":    "books",
		"id":       "1",
		"document": map[string]any{"title": "Learning Go"},
		"refresh":  true,
	})
	assert.False(res.IsError)
	assert.Equal(true, env["ok"])
	assert.Equal(usecase.ToolIndexDocument, env["tool"])
	assert.NotEmpty(env["correlation_id"])
	assert.Equal("created", env["result"].(map[string]any)["result"])

	structured, ok := res.StructuredContent.(mcpjsonrpc.Envelope)
	require.True(t, ok)
	assert.Equal(env["correlation_id"], structured.CorrelationID)

	res, env = call(t, s.binding, usecase.ToolGetDocument, map[string]any{"index": "books", "id": "1"})
	assert.False(res.IsError)
	source := env["result"].(map[string]any)["source"].(map[string]any)
	assert.Equal("Learning Go", source["title"])

	res, env = call(t, s.binding, usecase.ToolSearch, map[string]any{
		"index": "books",
		"query": map[string]any{"match": map[string]any{"title": "go"}},
	})
	assert.False(res.IsError)
	assert.EqualValues(1, env["result"].(map[string]any)["total"])
}

func TestBinding_Failures(t *testing.T) {
	tests := []struct {
		name     string
		tool     string
		args     map[string]any
		wantKind string
		wantCode float64
	}{
		{
			name:     "missing document",
			tool:     usecase.ToolGetDocument,
			args:     map[string]any{"index": "books", "id": "404"},
			wantKind: mcpjsonrpc.KindNotFound,
			wantCode: mcpjsonrpc.CodeNotFound,
		},
		{
			name:     "invalid arguments",
			tool:     usecase.ToolSearch,
			args:     map[string]any{"index": "books"},
			wantKind: mcpjsonrpc.KindInvalidArgument,
			wantCode: mcpjsonrpc.CodeInvalidParams,
		},
		{
			name:     "unknown tool",
			tool:     "drop_index",
			args:     map[string]any{},
			wantKind: mcpjsonrpc.KindInvalidArgument,
			wantCode: mcpjsonrpc.CodeInvalidParams,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			s := newStack(t)
			require.NoError(t, s.fake.CreateIndex("books"))

			res, env := call(t, s.binding, tt.tool, tt.args)
			assert.True(res.IsError)
			assert.Equal(false, env["ok"])
			assert.Equal(tt.tool, env["tool"])
			assert.NotEmpty(env["correlation_id"])
			errObj := env["error"].(map[string]any)
			assert.Equal(tt.wantKind, errObj["kind"])
			assert.Equal(tt.wantCode, errObj["code"])
			assert.NotEmpty(errObj["message"])
		})
	}
}

func TestBinding_InvalidArgumentsNeverReachEngine(t *testing.T) {
	s := newStack(t)
	before := s.fake.Requests()

	res, _ := call(t, s.binding, usecase.ToolIndexDocument, map[string]any{"index": "Books", "id": "1", "document": map[string]any{}})
	assert.True(t, res.IsError)
	assert.Equal(t, before, s.fake.Requests())
}

func TestBinding_UsesDispatcherOutcome(t *testing.T) {
	assert := assert.New(t)
	d := new(MockDispatcher)
	d.On("Dispatch", mock.Anything, mock.MatchedBy(func(req domain.OperationRequest) bool {
		return req.Tool == "cluster_health" && req.CorrelationID != ""
	})).Return(nil, domain.Errorf(domain.KindEngineUnavailable, "engine unreachable: connection refused")).Once()

	b := mcpserver.NewBinding(d, testLogger())
	res, env := call(t, b, "cluster_health", nil)

	assert.True(res.IsError)
	errObj := env["error"].(map[string]any)
	assert.Equal(mcpjsonrpc.KindEngineUnavailable, errObj["kind"])
	assert.EqualValues(mcpjsonrpc.CodeEngineUnavailable, errObj["code"])
	assert.Equal("engine unreachable: connection refused", errObj["message"])
	d.AssertExpectations(t)
}

func TestResult_UnserializablePayload(t *testing.T) {
	res := mcpserver.Result(mcpjsonrpc.Success("search", "c-1", map[string]any{"bad": make(chan int)}))
	assert.True(t, res.IsError)
	env := res.StructuredContent.(mcpjsonrpc.Envelope)
	assert.Equal(t, mcpjsonrpc.KindInternal, env.Error.Kind)
}

func rpc(t *testing.T, s stack, body string) map[string]any {
	t.Helper()
	msg := s.srv.HandleMessage(context.Background(), json.RawMessage(body))
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestServer_ToolsList(t *testing.T) {
	assert := assert.New(t)
	s := newStack(t)

	out := rpc(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	result, ok := out["result"].(map[string]any)
	require.True(t, ok, "unexpected response %v", out)
	tools := result["tools"].([]any)
	assert.Len(tools, len(usecase.Catalog()))

	byName := map[string]map[string]any{}
	for _, raw := range tools {
		tool := raw.(map[string]any)
		byName[tool["name"].(string)] = tool
	}
	search := byName[usecase.ToolSearch]
	require.NotNil(t, search)
	schema := search["inputSchema"].(map[string]any)
	assert.Equal("object", schema["type"])
	assert.ElementsMatch([]any{"index", "query"}, schema["required"])
	assert.Equal(true, search["annotations"].(map[string]any)["readOnlyHint"])
	output, ok := search["outputSchema"].(map[string]any)
	require.True(t, ok, "search publishes no output schema")
	assert.Equal("object", output["type"])
	assert.Contains(output["properties"], "result")

	bulk := byName[usecase.ToolBulkWrite]
	require.NotNil(t, bulk)
	assert.Equal(true, bulk["annotations"].(map[string]any)["destructiveHint"])
}

func TestServer_ToolsCall(t *testing.T) {
	s := newStack(t)
	out := rpc(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"cluster_health","arguments":{}}}`)
	result, ok := out["result"].(map[string]any)
	require.True(t, ok, "unexpected response %v", out)
	assert.NotEqual(t, true, result["isError"])
	content := result["content"].([]any)
	require.Len(t, content, 1)
	assert.True(t, strings.Contains(content[0].(map[string]any)["text"].(string), `"status":"green"`))
}

func TestRun_UnknownTransport(t *testing.T) {
	err := mcpserver.Run(context.Background(), mcpserver.NewServer("test"), mcpserver.TransportOptions{Kind: "grpc"}, testLogger())
	assert.ErrorContains(t, err, `unknown transport "grpc"`)
}

func TestRun_StdioStopsOnCancel(t *testing.T) {
	in, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- mcpserver.Run(ctx, mcpserver.NewServer("test"), mcpserver.TransportOptions{
			Kind:   mcpserver.TransportStdio,
			Stdin:  in,
			Stdout: io.Discard,
		}, testLogger())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stdio transport did not stop")
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestRun_StreamableHTTP(t *testing.T) {
	addr := freeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- mcpserver.Run(ctx, mcpserver.NewServer("test"), mcpserver.TransportOptions{
			Kind:            mcpserver.TransportHTTP,
			ListenAddr:      addr,
			ShutdownTimeout: time.Second,
		}, testLogger())
	}()

	initialize := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`
	var res *http.Response
	require.Eventually(t, func() bool {
		r, err := http.Post("http://"+addr+"/mcp", "application/json", strings.NewReader(initialize))
		if err != nil {
			return false
		}
		res = r
		return true
	}, 3*time.Second, 20*time.Millisecond)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.True(t, err == nil || errors.Is(err, http.ErrServerClosed), "unexpected error %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("http transport did not stop")
	}
}
