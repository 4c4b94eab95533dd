package usecase

import (
	"math"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/silbaram/elasticsearch-mcp-server/internal/domain"
)

// Tool names exposed to agents.
const (
	ToolSearch          = "search"
	ToolGetDocument     = "get_document"
	ToolIndexDocument   = "index_document"
	ToolDeleteDocument  = "delete_document"
	ToolBulkWrite       = "bulk_write"
	ToolClusterHealth   = "cluster_health"
	ToolListIndices     = "list_indices"
	ToolListAliases     = "list_aliases"
	ToolGetMappings     = "get_mappings"
	ToolClusterStats    = "cluster_stats"
	ToolShardAllocation = "shard_allocation"
)

// Search paging bounds.
const (
	DefaultSearchSize = 10
	MaxSearchSize     = 10000
	MaxBulkOperations = 1000
	MaxDocumentIDLen  = 512
	MaxIndexNameLen   = 255
)

const (
	// indexNamePattern matches a concrete index name: lowercase, no wildcards.
	indexNamePattern = `^[a-z0-9][a-z0-9._+-]*$`
	// indexTargetPattern additionally admits wildcards, comma lists and hidden (dot) indices.
	indexTargetPattern = `^[a-z0-9.*][a-z0-9._*,+-]*$`
)

// Catalog returns the complete, static list of tools. The list does not depend
// on which engine adapter is active.
func Catalog() []domain.ToolDescriptor {
	return []domain.ToolDescriptor{
		{
			Name:        ToolSearch,
			Description: "Search documents in an Elasticsearch index (or index pattern) using a query DSL clause, e.g. {\"match\": {\"title\": \"golang\"}}. Supports paging with size/from and optional sort.",
			Operation:   domain.OpSearch,
			ReadOnly:    true,
			InputSchema: strictObject(
				[]string{"index", "query"},
				prop("index", indexTargetSchema("Index name, pattern (logs-*) or comma separated list to search")),
				prop("query", describe(openapi3.NewObjectSchema(), "A single query DSL clause, e.g. {\"match_all\": {}}")),
				prop("size", describe(openapi3.NewIntegerSchema().WithMin(1).WithMax(MaxSearchSize), "Number of hits to return (1-10000, default 10)")),
				prop("from", describe(openapi3.NewIntegerSchema().WithMin(0), "Offset of the first hit (default 0)")),
				prop("sort", describe(openapi3.NewArraySchema(), "Optional sort specification, e.g. [{\"timestamp\": \"desc\"}]")),
			),
			OutputSchema: envelope("Search hits with total count", record(map[string]string{
				"took_ms":        "integer",
				"timed_out":      "boolean",
				"total":          "integer",
				"total_relation": "string",
				"max_score":      "number",
			}).WithProperty("hits", openapi3.NewArraySchema().WithItems(record(map[string]string{
				"index":  "string",
				"id":     "string",
				"score":  "number",
				"source": "object",
				"sort":   "array",
			})))),
		},
		{
			Name:        ToolGetDocument,
			Description: "Get a single document by id from an Elasticsearch index.",
			Operation:   domain.OpGetDocument,
			ReadOnly:    true,
			InputSchema: strictObject(
				[]string{"index", "id"},
				prop("index", indexNameSchema("Name of the index holding the document")),
				prop("id", documentIDSchema()),
			),
			OutputSchema: envelope("The stored document and its concurrency metadata", record(map[string]string{
				"index":        "string",
				"id":           "string",
				"version":      "integer",
				"seq_no":       "integer",
				"primary_term": "integer",
				"source":       "object",
			})),
		},
		{
			Name:        ToolIndexDocument,
			Description: "Index (create or overwrite) a document with the given id. Use op_type=create to fail if the document exists, or if_seq_no/if_primary_term for optimistic concurrency control.",
			Operation:   domain.OpIndexDocument,
			InputSchema: strictObject(
				[]string{"index", "id", "document"},
				prop("index", indexNameSchema("Name of the target index")),
				prop("id", documentIDSchema()),
				prop("document", describe(openapi3.NewObjectSchema(), "Document body (JSON object)")),
				prop("op_type", describe(openapi3.NewStringSchema().WithEnum("index", "create"), "index (default) overwrites, create fails when the id already exists")),
				prop("if_seq_no", describe(openapi3.NewIntegerSchema().WithMin(0).WithMax(math.MaxInt64), "Only write if the document has this sequence number")),
				prop("if_primary_term", describe(openapi3.NewIntegerSchema().WithMin(1).WithMax(math.MaxInt64), "Only write if the document has this primary term")),
				prop("refresh", describe(openapi3.NewBoolSchema(), "Refresh the shard so the change is visible to search immediately")),
			),
			OutputSchema: envelope("Outcome of the write", writeResultSchema()),
		},
		{
			Name:        ToolDeleteDocument,
			Description: "Delete a document by id from an Elasticsearch index.",
			Operation:   domain.OpDeleteDocument,
			InputSchema: strictObject(
				[]string{"index", "id"},
				prop("index", indexNameSchema("Name of the index holding the document")),
				prop("id", documentIDSchema()),
				prop("if_seq_no", describe(openapi3.NewIntegerSchema().WithMin(0).WithMax(math.MaxInt64), "Only delete if the document has this sequence number")),
				prop("if_primary_term", describe(openapi3.NewIntegerSchema().WithMin(1).WithMax(math.MaxInt64), "Only delete if the document has this primary term")),
				prop("refresh", describe(openapi3.NewBoolSchema(), "Refresh the shard so the change is visible to search immediately")),
			),
			OutputSchema: envelope("Outcome of the delete", writeResultSchema()),
		},
		{
			Name:        ToolBulkWrite,
			Description: "Execute several index/create/delete operations in one request. Per-item outcomes are reported in the result; one failing item does not fail the call.",
			Operation:   domain.OpBulkWrite,
			InputSchema: strictObject(
				[]string{"operations"},
				prop("operations", describe(openapi3.NewArraySchema().
					WithMinItems(1).
					WithMaxItems(MaxBulkOperations).
					WithItems(strictObject(
						[]string{"action", "index", "id"},
						prop("action", openapi3.NewStringSchema().WithEnum("index", "create", "delete")),
						prop("index", indexNameSchema("Target index")),
						prop("id", documentIDSchema()),
						prop("document", describe(openapi3.NewObjectSchema(), "Document body, required for index and create")),
					)), "Operations to execute in order (1-1000)")),
				prop("refresh", describe(openapi3.NewBoolSchema(), "Refresh affected shards after the bulk request")),
			),
			OutputSchema: envelope("Per-item outcomes", record(map[string]string{
				"took_ms": "integer",
				"errors":  "boolean",
			}).WithProperty("items", openapi3.NewArraySchema().WithItems(record(map[string]string{
				"action":  "string",
				"index":   "string",
				"id":      "string",
				"status":  "integer",
				"result":  "string",
				"version": "integer",
			}).WithProperty("error", record(map[string]string{
				"kind":    "string",
				"message": "string",
			}))))),
		},
		{
			Name:         ToolClusterHealth,
			Description:  "Returns basic information about the health of the cluster.",
			Operation:    domain.OpClusterHealth,
			ReadOnly:     true,
			InputSchema:  strictObject(nil),
			OutputSchema: envelope("Cluster health summary", record(map[string]string{
				"cluster_name":          "string",
				"timed_out":             "boolean",
				"number_of_nodes":       "integer",
				"number_of_data_nodes":  "integer",
				"active_primary_shards": "integer",
				"active_shards":         "integer",
				"relocating_shards":     "integer",
				"initializing_shards":   "integer",
				"unassigned_shards":     "integer",
				"active_shards_percent": "number",
			}).WithProperty("status", openapi3.NewStringSchema().WithEnum("green", "yellow", "red"))),
		},
		{
			Name:        ToolListIndices,
			Description: "List indices with health, status, document counts and store sizes. Optionally filtered by an index name or pattern.",
			Operation:   domain.OpListIndices,
			ReadOnly:    true,
			InputSchema: strictObject(nil,
				prop("pattern", indexTargetSchema("Index name or pattern to filter by")),
			),
			OutputSchema: envelope("One row per index", openapi3.NewArraySchema().WithItems(record(map[string]string{
				"index":          "string",
				"health":         "string",
				"status":         "string",
				"docs_count":     "string",
				"docs_deleted":   "string",
				"pri_store_size": "string",
				"store_size":     "string",
			}))),
		},
		{
			Name:        ToolListAliases,
			Description: "List index aliases, optionally only those matching an alias name or wildcard pattern. Hidden aliases starting with '.' are omitted.",
			Operation:   domain.OpListAliases,
			ReadOnly:    true,
			InputSchema: strictObject(nil,
				prop("pattern", describe(openapi3.NewStringSchema().WithMinLength(1).WithMaxLength(MaxIndexNameLen), "Alias name or wildcard pattern")),
			),
			OutputSchema: envelope("One row per alias and index", openapi3.NewArraySchema().WithItems(record(map[string]string{
				"alias":          "string",
				"index":          "string",
				"filter":         "string",
				"routing_index":  "string",
				"routing_search": "string",
				"is_write_index": "string",
			}))),
		},
		{
			Name:        ToolGetMappings,
			Description: "Get field mappings for a specific Elasticsearch index.",
			Operation:   domain.OpGetMappings,
			ReadOnly:    true,
			InputSchema: strictObject(
				[]string{"index"},
				prop("index", indexNameSchema("Name of the index to get mappings for")),
			),
			OutputSchema: envelope("Field mappings of the index", record(map[string]string{
				"index":    "string",
				"mappings": "object",
			})),
		},
		{
			Name:         ToolClusterStats,
			Description:  "Returns cluster statistics: name, UUID, health status, node roles, OS and JVM usage, index counts and shard metrics.",
			Operation:    domain.OpClusterStats,
			ReadOnly:     true,
			InputSchema:  strictObject(nil),
			OutputSchema: envelope("Condensed cluster statistics", record(map[string]string{
				"cluster_name":      "string",
				"cluster_uuid":      "string",
				"status":            "string",
				"timestamp":         "integer",
				"nodes_total":       "integer",
				"nodes_data":        "integer",
				"nodes_master":      "integer",
				"nodes_ingest":      "integer",
				"mem_used_percent":  "integer",
				"heap_used_bytes":   "integer",
				"heap_max_bytes":    "integer",
				"heap_used_percent": "number",
				"processors":        "integer",
				"indices_count":     "integer",
				"shards_total":      "integer",
				"shards_primaries":  "integer",
				"replication":       "number",
				"docs_count":        "integer",
				"docs_deleted":      "integer",
				"store_bytes":       "integer",
			})),
		},
		{
			Name:        ToolShardAllocation,
			Description: "Returns shard allocation and disk usage per node, optionally for a single node.",
			Operation:   domain.OpShardAllocation,
			ReadOnly:    true,
			InputSchema: strictObject(nil,
				prop("node_id", describe(openapi3.NewStringSchema().WithMinLength(1), "Node id or name")),
			),
			OutputSchema: envelope("Shard count and disk usage per node", openapi3.NewArraySchema().WithItems(record(map[string]string{
				"node":         "string",
				"shards":       "string",
				"disk_indices": "string",
				"disk_used":    "string",
				"disk_avail":   "string",
				"disk_total":   "string",
				"disk_percent": "string",
				"host":         "string",
				"ip":           "string",
			}))),
		},
	}
}

type property struct {
	name   string
	schema *openapi3.Schema
}

func prop(name string, schema *openapi3.Schema) property {
	return property{name: name, schema: schema}
}

func describe(s *openapi3.Schema, description string) *openapi3.Schema {
	s.Description = description
	return s
}

// strictObject builds an object schema that rejects unknown fields.
func strictObject(required []string, props ...property) *openapi3.Schema {
	s := openapi3.NewObjectSchema()
	for _, p := range props {
		s.WithProperty(p.name, p.schema)
	}
	if len(required) > 0 {
		s.Required = required
	}
	s.AdditionalProperties = openapi3.AdditionalProperties{Has: openapi3.BoolPtr(false)}
	return s
}

func indexNameSchema(description string) *openapi3.Schema {
	return describe(openapi3.NewStringSchema().
		WithMinLength(1).
		WithMaxLength(MaxIndexNameLen).
		WithPattern(indexNamePattern), description)
}

func indexTargetSchema(description string) *openapi3.Schema {
	return describe(openapi3.NewStringSchema().
		WithMinLength(1).
		WithMaxLength(MaxIndexNameLen).
		WithPattern(indexTargetPattern), description)
}

// envelope wraps a tool's payload schema in the response document every call returns.
func envelope(description string, result *openapi3.Schema) *openapi3.Schema {
	s := openapi3.NewObjectSchema().
		WithProperty("ok", openapi3.NewBoolSchema()).
		WithProperty("tool", openapi3.NewStringSchema()).
		WithProperty("correlation_id", openapi3.NewStringSchema()).
		WithProperty("result", describe(result, description)).
		WithProperty("error", errorSchema())
	s.Required = []string{"ok", "tool"}
	return s
}

func errorSchema() *openapi3.Schema {
	s := record(map[string]string{
		"code":    "integer",
		"message": "string",
	}).WithProperty("kind", openapi3.NewStringSchema().WithEnum(
		string(domain.KindInvalidArgument),
		string(domain.KindNotFound),
		string(domain.KindConflict),
		string(domain.KindEngineUnavailable),
		string(domain.KindTimeout),
		string(domain.KindInternal),
	))
	s.Required = []string{"kind", "code", "message"}
	return describe(s, "Set when ok is false")
}

func writeResultSchema() *openapi3.Schema {
	return record(map[string]string{
		"index":        "string",
		"id":           "string",
		"result":       "string",
		"version":      "integer",
		"seq_no":       "integer",
		"primary_term": "integer",
	})
}

// record builds a permissive object schema from field name -> JSON type.
func record(fields map[string]string) *openapi3.Schema {
	s := openapi3.NewObjectSchema()
	for name, typ := range fields {
		var field *openapi3.Schema
		switch typ {
		case "string":
			field = openapi3.NewStringSchema()
		case "integer":
			field = openapi3.NewIntegerSchema()
		case "number":
			field = openapi3.NewFloat64Schema()
		case "boolean":
			field = openapi3.NewBoolSchema()
		case "array":
			field = openapi3.NewArraySchema()
		default:
			field = openapi3.NewObjectSchema()
		}
		s.WithProperty(name, field)
	}
	return s
}

func documentIDSchema() *openapi3.Schema {
	return describe(openapi3.NewStringSchema().WithMinLength(1).WithMaxLength(MaxDocumentIDLen), "Document id")
}
