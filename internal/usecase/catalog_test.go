package usecase_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silbaram/elasticsearch-mcp-server/internal/domain"
	"github.com/silbaram/elasticsearch-mcp-server/internal/usecase"
	"github.com/silbaram/elasticsearch-mcp-server/pkg/shared/mcpjsonrpc"
)

func TestCatalog(t *testing.T) {
	assert := assert.New(t)
	catalog := usecase.Catalog()

	names := make([]string, 0, len(catalog))
	ops := map[domain.Operation]bool{}
	for _, tool := range catalog {
		names = append(names, tool.Name)
		ops[tool.Operation] = true

		assert.NotEmpty(tool.Description, tool.Name)
		assert.Equal(!tool.Operation.IsWrite(), tool.ReadOnly, "%s read-only flag", tool.Name)

		raw, err := domain.MarshalSchema(tool.InputSchema)
		require.NoError(t, err)
		var schema map[string]any
		require.NoError(t, json.Unmarshal(raw, &schema))
		assert.Equal("object", schema["type"], tool.Name)
		assert.Equal(false, schema["additionalProperties"], "%s must reject unknown fields", tool.Name)

		require.NotNil(t, tool.OutputSchema, "%s has no output schema", tool.Name)
		raw, err = domain.MarshalSchema(tool.OutputSchema)
		require.NoError(t, err)
		var output map[string]any
		require.NoError(t, json.Unmarshal(raw, &output))
		assert.Equal("object", output["type"], tool.Name)
		assert.ElementsMatch([]any{"ok", "tool"}, output["required"], tool.Name)
		assert.Contains(output["properties"], "result", tool.Name)
		assert.Contains(output["properties"], "error", tool.Name)
	}

	assert.Equal([]string{
		"search", "get_document", "index_document", "delete_document", "bulk_write",
		"cluster_health", "list_indices", "list_aliases", "get_mappings", "cluster_stats", "shard_allocation",
	}, names)
	assert.Len(ops, len(catalog), "each tool maps to its own operation")
}

func TestCatalog_IndexNamePatterns(t *testing.T) {
	byName := map[string]domain.ToolDescriptor{}
	for _, tool := range usecase.Catalog() {
		byName[tool.Name] = tool
	}

	tests := []struct {
		tool  string
		index string
		valid bool
	}{
		{tool: "get_document", index: "logs-2024.01.01", valid: true},
		{tool: "get_document", index: "logs-*", valid: false},
		{tool: "get_document", index: "_internal", valid: false},
		{tool: "get_document", index: "Logs", valid: false},
		{tool: "search", index: "logs-*", valid: true},
		{tool: "search", index: "logs-a,logs-b", valid: true},
		{tool: "search", index: ".kibana", valid: true},
		{tool: "search", index: "logs a", valid: false},
	}
	for _, tt := range tests {
		t.Run(tt.tool+"/"+tt.index, func(t *testing.T) {
			args := map[string]any{"index": tt.index, "id": "1", "query": map[string]any{"match_all": map[string]any{}}}
			if tt.tool == "get_document" {
				delete(args, "query")
			} else {
				delete(args, "id")
			}
			err := domain.ValidateArguments(byName[tt.tool].InputSchema, args)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrInvalidArgument)
			}
		})
	}
}

func TestCatalog_OutputSchemasMatchEnvelopes(t *testing.T) {
	byName := map[string]domain.ToolDescriptor{}
	for _, tool := range usecase.Catalog() {
		byName[tool.Name] = tool
	}
	seqNo, term := int64(3), int64(1)
	score := 1.5

	tests := []struct {
		name string
		env  mcpjsonrpc.Envelope
	}{
		{
			name: usecase.ToolSearch,
			env: mcpjsonrpc.Success(usecase.ToolSearch, "c-1", &domain.SearchResult{
				Total:    1,
				MaxScore: &score,
				Hits:     []domain.SearchHit{{Index: "books", ID: "1", Score: &score, Source: json.RawMessage(`{"title":"go"}`)}},
			}),
		},
		{
			name: usecase.ToolIndexDocument,
			env: mcpjsonrpc.Success(usecase.ToolIndexDocument, "c-2", &domain.WriteResult{
				Index: "books", ID: "1", Result: "created", Version: 1, SeqNo: &seqNo, PrimaryTerm: &term,
			}),
		},
		{
			name: usecase.ToolListIndices,
			env: mcpjsonrpc.Success(usecase.ToolListIndices, "c-3", []domain.IndexInfo{
				{Index: "books", Health: "yellow", Status: "open", DocsCount: "1"},
			}),
		},
		{
			name: usecase.ToolClusterHealth,
			env: mcpjsonrpc.Success(usecase.ToolClusterHealth, "c-4", &domain.ClusterHealth{
				ClusterName: "docker-cluster", Status: "green", NumberOfNodes: 1, ActiveShardsPercent: 100,
			}),
		},
		{
			name: usecase.ToolGetDocument,
			env:  mcpjsonrpc.Failure(usecase.ToolGetDocument, "c-5", mcpjsonrpc.KindNotFound, "document books/1 not found"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.env)
			require.NoError(t, err)
			var doc map[string]any
			require.NoError(t, json.Unmarshal(raw, &doc))
			assert.NoError(t, domain.ValidateArguments(byName[tt.name].OutputSchema, doc))
		})
	}
}
