// Package mcpserver binds the tool catalog and the dispatcher to the MCP
// protocol through mcp-go.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/silbaram/elasticsearch-mcp-server/internal/domain"
	"github.com/silbaram/elasticsearch-mcp-server/pkg/shared/mcpjsonrpc"
)

// ServerName is announced to clients during initialization.
const ServerName = "elasticsearch-mcp-server"

// Dispatcher is the part of usecase.Dispatcher the binding needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, req domain.OperationRequest) (*domain.OperationResult, error)
}

// Binding turns MCP tool calls into dispatches and dispatch outcomes into tool results.
type Binding struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewBinding creates a Binding.
func NewBinding(dispatcher Dispatcher, logger *slog.Logger) *Binding {
	return &Binding{
		dispatcher: dispatcher,
		logger:     logger.With("component", "mcp_binding"),
	}
}

// NewServer creates the MCP server with tool support enabled.
func NewServer(version string) *server.MCPServer {
	return server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
}

// Register adds every descriptor to s. Input and output schemas are published as-is.
func (b *Binding) Register(s *server.MCPServer, tools []domain.ToolDescriptor) error {
	for _, desc := range tools {
		tool, err := ToolFor(desc)
		if err != nil {
			return err
		}
		s.AddTool(tool, b.Handler(desc.Name))
		b.logger.Debug("Registered MCP tool", slog.String("tool", desc.Name), slog.Bool("read_only", desc.ReadOnly))
	}
	b.logger.Info("MCP tools registered", slog.Int("count", len(tools)))
	return nil
}

// ToolFor converts a descriptor into its protocol form.
func ToolFor(desc domain.ToolDescriptor) (mcp.Tool, error) {
	raw, err := domain.MarshalSchema(desc.InputSchema)
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("tool %s: %w", desc.Name, err)
	}
	out, err := domain.MarshalSchema(desc.OutputSchema)
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("tool %s: %w", desc.Name, err)
	}
	tool := mcp.NewToolWithRawSchema(desc.Name, desc.Description, raw)
	tool.RawOutputSchema = out
	tool.Annotations.ReadOnlyHint = mcp.ToBoolPtr(desc.ReadOnly)
	tool.Annotations.DestructiveHint = mcp.ToBoolPtr(desc.Operation == domain.OpDeleteDocument || desc.Operation == domain.OpBulkWrite)
	tool.Annotations.IdempotentHint = mcp.ToBoolPtr(desc.ReadOnly)
	tool.Annotations.OpenWorldHint = mcp.ToBoolPtr(false)
	return tool, nil
}

// Handler returns the mcp-go handler for the named tool. Operation failures are
// reported as error results, never as protocol errors.
func (b *Binding) Handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		correlationID := uuid.NewString()
		res, err := b.dispatcher.Dispatch(ctx, domain.OperationRequest{
			CorrelationID: correlationID,
			Tool:          name,
			Arguments:     request.GetArguments(),
		})
		if err != nil {
			derr := domain.AsError(err)
			return Result(mcpjsonrpc.Failure(name, correlationID, string(derr.Kind), derr.Message)), nil
		}
		return Result(mcpjsonrpc.Success(res.Tool, res.CorrelationID, res.Payload)), nil
	}
}

// Result renders env as a tool result carrying the same document as text and
// as structured content.
func Result(env mcpjsonrpc.Envelope) *mcp.CallToolResult {
	text, err := json.Marshal(env)
	if err != nil {
		env = mcpjsonrpc.Failure(env.Tool, env.CorrelationID, mcpjsonrpc.KindInternal, "result is not serializable: "+err.Error())
		text, _ = json.Marshal(env)
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{mcp.NewTextContent(string(text))},
		StructuredContent: env,
		IsError:           !env.OK,
	}
}
