package domain

import (
	"encoding/json"
	"strings"
)

// IndexRef names a single index (or, for searches, an index pattern).
type IndexRef string

// DocumentID identifies a document inside an index.
type DocumentID string

// Validate reports an InvalidArgument error when the reference is blank.
func (r IndexRef) Validate() error {
	if strings.TrimSpace(string(r)) == "" {
		return Errorf(KindInvalidArgument, "index must not be empty")
	}
	return nil
}

// Validate reports an InvalidArgument error when the id is blank.
func (id DocumentID) Validate() error {
	if strings.TrimSpace(string(id)) == "" {
		return Errorf(KindInvalidArgument, "document id must not be empty")
	}
	return nil
}

// QuerySpec is an engine-agnostic search description.
// Query holds a single query DSL clause, e.g. {"match": {"title": "go"}}.
type QuerySpec struct {
	Index IndexRef
	Query map[string]any
	Size  int
	From  int
	Sort  []any
}

// Body renders the request body shared by every engine release:
// {"query": ..., "sort": ...}. Paging is left to the adapter.
func (q QuerySpec) Body() map[string]any {
	body := map[string]any{"query": q.Query}
	if len(q.Sort) > 0 {
		body["sort"] = q.Sort
	}
	return body
}

// OpType controls create-vs-overwrite semantics on writes.
type OpType string

const (
	OpTypeIndex  OpType = "index"
	OpTypeCreate OpType = "create"
)

// IndexOptions carries optimistic-concurrency and visibility options for single-document writes.
type IndexOptions struct {
	OpType        OpType
	IfSeqNo       *int64
	IfPrimaryTerm *int64
	Refresh       bool
}

// WriteAction is one of the actions a bulk request may carry.
type WriteAction string

const (
	WriteActionIndex  WriteAction = "index"
	WriteActionCreate WriteAction = "create"
	WriteActionDelete WriteAction = "delete"
)

// WriteOp is a single item of a bulk write.
type WriteOp struct {
	Action   WriteAction
	Index    IndexRef
	ID       DocumentID
	Document json.RawMessage
}

// Document is a stored document with its concurrency-control metadata.
type Document struct {
	Index       string          `json:"index"`
	ID          string          `json:"id"`
	Version     int64           `json:"version,omitempty"`
	SeqNo       *int64          `json:"seq_no,omitempty"`
	PrimaryTerm *int64          `json:"primary_term,omitempty"`
	Source      json.RawMessage `json:"source"`
}

// SearchHit is one search match.
type SearchHit struct {
	Index  string          `json:"index"`
	ID     string          `json:"id"`
	Score  *float64        `json:"score,omitempty"`
	Source json.RawMessage `json:"source,omitempty"`
	Sort   []any           `json:"sort,omitempty"`
}

// SearchResult is the engine-agnostic search outcome.
type SearchResult struct {
	Took          int64       `json:"took_ms"`
	TimedOut      bool        `json:"timed_out"`
	Total         int64       `json:"total"`
	TotalRelation string      `json:"total_relation,omitempty"`
	MaxScore      *float64    `json:"max_score,omitempty"`
	Hits          []SearchHit `json:"hits"`
}

// WriteResult is the outcome of a single-document write.
type WriteResult struct {
	Index       string `json:"index"`
	ID          string `json:"id"`
	Result      string `json:"result"`
	Version     int64  `json:"version,omitempty"`
	SeqNo       *int64 `json:"seq_no,omitempty"`
	PrimaryTerm *int64 `json:"primary_term,omitempty"`
}

// ItemError describes why a single bulk item failed.
type ItemError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// BulkItemResult is the per-item outcome of a bulk write.
type BulkItemResult struct {
	Action  WriteAction `json:"action"`
	Index   string      `json:"index"`
	ID      string      `json:"id"`
	Status  int         `json:"status"`
	Result  string      `json:"result,omitempty"`
	Version int64       `json:"version,omitempty"`
	Error   *ItemError  `json:"error,omitempty"`
}

// BulkResult reports every item; Errors is true when at least one item failed.
type BulkResult struct {
	Took   int64            `json:"took_ms"`
	Errors bool             `json:"errors"`
	Items  []BulkItemResult `json:"items"`
}

// ClusterHealth is the engine-agnostic cluster health summary.
type ClusterHealth struct {
	ClusterName         string  `json:"cluster_name"`
	Status              string  `json:"status"`
	TimedOut            bool    `json:"timed_out"`
	NumberOfNodes       int     `json:"number_of_nodes"`
	NumberOfDataNodes   int     `json:"number_of_data_nodes"`
	ActivePrimaryShards int     `json:"active_primary_shards"`
	ActiveShards        int     `json:"active_shards"`
	RelocatingShards    int     `json:"relocating_shards"`
	InitializingShards  int     `json:"initializing_shards"`
	UnassignedShards    int     `json:"unassigned_shards"`
	ActiveShardsPercent float64 `json:"active_shards_percent"`
}

// IndexInfo is a row of the index listing.
type IndexInfo struct {
	Index        string `json:"index"`
	Health       string `json:"health"`
	Status       string `json:"status"`
	DocsCount    string `json:"docs_count"`
	DocsDeleted  string `json:"docs_deleted"`
	PriStoreSize string `json:"pri_store_size"`
	StoreSize    string `json:"store_size"`
}

// AliasInfo is a row of the alias listing.
type AliasInfo struct {
	Alias         string `json:"alias"`
	Index         string `json:"index"`
	Filter        string `json:"filter"`
	RoutingIndex  string `json:"routing_index"`
	RoutingSearch string `json:"routing_search"`
	IsWriteIndex  string `json:"is_write_index"`
}

// Mappings holds the field mappings of one index.
type Mappings struct {
	Index    string          `json:"index"`
	Mappings json.RawMessage `json:"mappings"`
}

// ClusterStats is a condensed view of cluster statistics.
type ClusterStats struct {
	ClusterName     string  `json:"cluster_name"`
	ClusterUUID     string  `json:"cluster_uuid"`
	Status          string  `json:"status"`
	Timestamp       int64   `json:"timestamp"`
	NodesTotal      int     `json:"nodes_total"`
	NodesData       int     `json:"nodes_data"`
	NodesMaster     int     `json:"nodes_master"`
	NodesIngest     int     `json:"nodes_ingest"`
	MemUsedPercent  int     `json:"mem_used_percent"`
	HeapUsedBytes   int64   `json:"heap_used_bytes"`
	HeapMaxBytes    int64   `json:"heap_max_bytes"`
	HeapUsedPercent float64 `json:"heap_used_percent"`
	Processors      int     `json:"processors"`
	IndicesCount    int     `json:"indices_count"`
	ShardsTotal     int     `json:"shards_total"`
	ShardsPrimaries int     `json:"shards_primaries"`
	Replication     float64 `json:"replication"`
	DocsCount       int64   `json:"docs_count"`
	DocsDeleted     int64   `json:"docs_deleted"`
	StoreBytes      int64   `json:"store_bytes"`
}

// AllocationInfo is a row of the shard allocation listing.
type AllocationInfo struct {
	Node        string `json:"node"`
	Shards      string `json:"shards"`
	DiskIndices string `json:"disk_indices"`
	DiskUsed    string `json:"disk_used"`
	DiskAvail   string `json:"disk_avail"`
	DiskTotal   string `json:"disk_total"`
	DiskPercent string `json:"disk_percent"`
	Host        string `json:"host"`
	IP          string `json:"ip"`
}
