package eswire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/silbaram/elasticsearch-mcp-server/internal/domain"
)

// Text is a cat API cell. Cells arrive as strings, numbers or null depending on
// the column and release; all are kept as text.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = Text(s)
		return nil
	}
	*t = Text(strings.TrimSpace(string(b)))
	return nil
}

// ReadBody reads a response body fully. A read failure means the connection broke mid-response.
func ReadBody(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, TransportError(err)
	}
	return b, nil
}

// Decode unmarshals a 2xx body into v.
func Decode(body []byte, v any, what string) error {
	if err := json.Unmarshal(body, v); err != nil {
		return DecodeError(err, what)
	}
	return nil
}

// --- info ---

type InfoResponse struct {
	Name        string `json:"name"`
	ClusterName string `json:"cluster_name"`
	ClusterUUID string `json:"cluster_uuid"`
	Version     struct {
		Number       string `json:"number"`
		BuildFlavor  string `json:"build_flavor"`
		Distribution string `json:"distribution"`
	} `json:"version"`
	Tagline string `json:"tagline"`
}

func (r InfoResponse) Domain() *domain.EngineInfo {
	dist := r.Version.Distribution
	if dist == "" {
		dist = "elasticsearch"
	}
	return &domain.EngineInfo{
		ClusterName:   r.ClusterName,
		ClusterUUID:   r.ClusterUUID,
		VersionNumber: r.Version.Number,
		Distribution:  dist,
	}
}

// --- documents ---

type GetResponse struct {
	Index       string          `json:"_index"`
	ID          string          `json:"_id"`
	Version     int64           `json:"_version"`
	SeqNo       *int64          `json:"_seq_no"`
	PrimaryTerm *int64          `json:"_primary_term"`
	Found       bool            `json:"found"`
	Source      json.RawMessage `json:"_source"`
}

func (r GetResponse) Domain() *domain.Document {
	return &domain.Document{
		Index:       r.Index,
		ID:          r.ID,
		Version:     r.Version,
		SeqNo:       r.SeqNo,
		PrimaryTerm: r.PrimaryTerm,
		Source:      r.Source,
	}
}

type WriteResponse struct {
	Index       string `json:"_index"`
	ID          string `json:"_id"`
	Version     int64  `json:"_version"`
	Result      string `json:"result"`
	SeqNo       *int64 `json:"_seq_no"`
	PrimaryTerm *int64 `json:"_primary_term"`
}

func (r WriteResponse) Domain() *domain.WriteResult {
	return &domain.WriteResult{
		Index:       r.Index,
		ID:          r.ID,
		Result:      r.Result,
		Version:     r.Version,
		SeqNo:       r.SeqNo,
		PrimaryTerm: r.PrimaryTerm,
	}
}

// --- search ---

type SearchResponse struct {
	Took     int64 `json:"took"`
	TimedOut bool  `json:"timed_out"`
	Hits     struct {
		// Total is {"value":n,"relation":"eq"} or, with rest_total_hits_as_int, a bare number.
		Total    json.RawMessage `json:"total"`
		MaxScore *float64        `json:"max_score"`
		Hits     []struct {
			Index  string          `json:"_index"`
			ID     string          `json:"_id"`
			Score  *float64        `json:"_score"`
			Source json.RawMessage `json:"_source"`
			Sort   []any           `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}

func (r SearchResponse) Domain() (*domain.SearchResult, error) {
	out := &domain.SearchResult{
		Took:     r.Took,
		TimedOut: r.TimedOut,
		MaxScore: r.Hits.MaxScore,
		Hits:     make([]domain.SearchHit, 0, len(r.Hits.Hits)),
	}
	if len(r.Hits.Total) > 0 && !bytes.Equal(r.Hits.Total, []byte("null")) {
		var total struct {
			Value    int64  `json:"value"`
			Relation string `json:"relation"`
		}
		if err := json.Unmarshal(r.Hits.Total, &total); err != nil {
			if err := json.Unmarshal(r.Hits.Total, &total.Value); err != nil {
				return nil, DecodeError(err, "search")
			}
			total.Relation = "eq"
		}
		out.Total, out.TotalRelation = total.Value, total.Relation
	}
	for _, h := range r.Hits.Hits {
		out.Hits = append(out.Hits, domain.SearchHit{
			Index:  h.Index,
			ID:     h.ID,
			Score:  h.Score,
			Source: h.Source,
			Sort:   h.Sort,
		})
	}
	return out, nil
}

// --- bulk ---

type bulkItemBody struct {
	Index   string      `json:"_index"`
	ID      string      `json:"_id"`
	Status  int         `json:"status"`
	Result  string      `json:"result"`
	Version int64       `json:"_version"`
	Error   *errorCause `json:"error"`
}

type BulkResponse struct {
	Took   int64                     `json:"took"`
	Errors bool                      `json:"errors"`
	Items  []map[string]bulkItemBody `json:"items"`
}

// Domain converts the response. Each item is keyed by its action name; item
// failures are classified by status like whole-request failures.
func (r BulkResponse) Domain() (*domain.BulkResult, error) {
	out := &domain.BulkResult{Took: r.Took, Items: make([]domain.BulkItemResult, 0, len(r.Items))}
	for i, item := range r.Items {
		if len(item) != 1 {
			return nil, domain.Errorf(domain.KindInternal, "unexpected bulk item %d with %d actions", i, len(item))
		}
		for action, body := range item {
			res := domain.BulkItemResult{
				Action:  domain.WriteAction(action),
				Index:   body.Index,
				ID:      body.ID,
				Status:  body.Status,
				Result:  body.Result,
				Version: body.Version,
			}
			if body.Error != nil || body.Status >= 300 {
				msg := ""
				if body.Error != nil {
					msg = describeCause(*body.Error)
				}
				if msg == "" {
					msg = fmt.Sprintf("item failed with status %d", body.Status)
				}
				res.Error = &domain.ItemError{Kind: KindForStatus(body.Status), Message: msg}
				// A delete of a missing id reports 404 without an error object.
				if body.Error == nil && body.Result == "not_found" {
					res.Error = nil
				} else {
					out.Errors = true
				}
			}
			out.Items = append(out.Items, res)
		}
	}
	return out, nil
}

// --- cluster ---

type HealthResponse struct {
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
	ActiveShardsPercent float64 `json:"active_shards_percent_as_number"`
}

func (r HealthResponse) Domain() *domain.ClusterHealth {
	h := domain.ClusterHealth(r)
	return &h
}

type StatsResponse struct {
	ClusterName string `json:"cluster_name"`
	ClusterUUID string `json:"cluster_uuid"`
	Status      string `json:"status"`
	Timestamp   int64  `json:"timestamp"`
	Nodes       struct {
		Count struct {
			Total  int `json:"total"`
			Data   int `json:"data"`
			Master int `json:"master"`
			Ingest int `json:"ingest"`
		} `json:"count"`
		OS struct {
			AvailableProcessors int `json:"available_processors"`
			Mem                 struct {
				UsedPercent int `json:"used_percent"`
			} `json:"mem"`
		} `json:"os"`
		JVM struct {
			Mem struct {
				HeapUsedInBytes int64 `json:"heap_used_in_bytes"`
				HeapMaxInBytes  int64 `json:"heap_max_in_bytes"`
			} `json:"mem"`
		} `json:"jvm"`
	} `json:"nodes"`
	Indices struct {
		Count  int `json:"count"`
		Shards struct {
			Total       int     `json:"total"`
			Primaries   int     `json:"primaries"`
			Replication float64 `json:"replication"`
		} `json:"shards"`
		Docs struct {
			Count   int64 `json:"count"`
			Deleted int64 `json:"deleted"`
		} `json:"docs"`
		Store struct {
			SizeInBytes int64 `json:"size_in_bytes"`
		} `json:"store"`
	} `json:"indices"`
}

func (r StatsResponse) Domain() *domain.ClusterStats {
	s := &domain.ClusterStats{
		ClusterName:     r.ClusterName,
		ClusterUUID:     r.ClusterUUID,
		Status:          r.Status,
		Timestamp:       r.Timestamp,
		NodesTotal:      r.Nodes.Count.Total,
		NodesData:       r.Nodes.Count.Data,
		NodesMaster:     r.Nodes.Count.Master,
		NodesIngest:     r.Nodes.Count.Ingest,
		MemUsedPercent:  r.Nodes.OS.Mem.UsedPercent,
		HeapUsedBytes:   r.Nodes.JVM.Mem.HeapUsedInBytes,
		HeapMaxBytes:    r.Nodes.JVM.Mem.HeapMaxInBytes,
		Processors:      r.Nodes.OS.AvailableProcessors,
		IndicesCount:    r.Indices.Count,
		ShardsTotal:     r.Indices.Shards.Total,
		ShardsPrimaries: r.Indices.Shards.Primaries,
		Replication:     r.Indices.Shards.Replication,
		DocsCount:       r.Indices.Docs.Count,
		DocsDeleted:     r.Indices.Docs.Deleted,
		StoreBytes:      r.Indices.Store.SizeInBytes,
	}
	if s.HeapMaxBytes > 0 {
		s.HeapUsedPercent = float64(s.HeapUsedBytes) * 100 / float64(s.HeapMaxBytes)
	}
	return s
}

// --- cat ---

type CatIndexRow struct {
	Health       Text `json:"health"`
	Status       Text `json:"status"`
	Index        Text `json:"index"`
	DocsCount    Text `json:"docs.count"`
	DocsDeleted  Text `json:"docs.deleted"`
	StoreSize    Text `json:"store.size"`
	PriStoreSize Text `json:"pri.store.size"`
}

// Indices converts cat rows sorted by index name.
func Indices(rows []CatIndexRow) []domain.IndexInfo {
	out := make([]domain.IndexInfo, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.IndexInfo{
			Index:        string(r.Index),
			Health:       string(r.Health),
			Status:       string(r.Status),
			DocsCount:    string(r.DocsCount),
			DocsDeleted:  string(r.DocsDeleted),
			PriStoreSize: string(r.PriStoreSize),
			StoreSize:    string(r.StoreSize),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

type CatAliasRow struct {
	Alias         Text `json:"alias"`
	Index         Text `json:"index"`
	Filter        Text `json:"filter"`
	RoutingIndex  Text `json:"routing.index"`
	RoutingSearch Text `json:"routing.search"`
	IsWriteIndex  Text `json:"is_write_index"`
}

// Aliases converts cat rows, dropping hidden aliases whose name starts with ".".
func Aliases(rows []CatAliasRow) []domain.AliasInfo {
	out := make([]domain.AliasInfo, 0, len(rows))
	for _, r := range rows {
		if strings.HasPrefix(string(r.Alias), ".") {
			continue
		}
		out = append(out, domain.AliasInfo{
			Alias:         string(r.Alias),
			Index:         string(r.Index),
			Filter:        string(r.Filter),
			RoutingIndex:  string(r.RoutingIndex),
			RoutingSearch: string(r.RoutingSearch),
			IsWriteIndex:  string(r.IsWriteIndex),
		})
	}
	return out
}

type CatAllocationRow struct {
	Shards      Text `json:"shards"`
	DiskIndices Text `json:"disk.indices"`
	DiskUsed    Text `json:"disk.used"`
	DiskAvail   Text `json:"disk.avail"`
	DiskTotal   Text `json:"disk.total"`
	DiskPercent Text `json:"disk.percent"`
	Host        Text `json:"host"`
	IP          Text `json:"ip"`
	Node        Text `json:"node"`
}

func Allocation(rows []CatAllocationRow) []domain.AllocationInfo {
	out := make([]domain.AllocationInfo, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.AllocationInfo{
			Node:        string(r.Node),
			Shards:      string(r.Shards),
			DiskIndices: string(r.DiskIndices),
			DiskUsed:    string(r.DiskUsed),
			DiskAvail:   string(r.DiskAvail),
			DiskTotal:   string(r.DiskTotal),
			DiskPercent: string(r.DiskPercent),
			Host:        string(r.Host),
			IP:          string(r.IP),
		})
	}
	return out
}

// --- mappings ---

// MappingsFor picks the mappings of index from a GET _mapping body. When index
// is an alias the body is keyed by the concrete index, so a single entry is
// accepted under any name.
func MappingsFor(body []byte, index domain.IndexRef) (*domain.Mappings, error) {
	var byIndex map[string]struct {
		Mappings json.RawMessage `json:"mappings"`
	}
	if err := json.Unmarshal(body, &byIndex); err != nil {
		return nil, DecodeError(err, "mapping")
	}
	if m, ok := byIndex[string(index)]; ok {
		return &domain.Mappings{Index: string(index), Mappings: m.Mappings}, nil
	}
	if len(byIndex) == 1 {
		for name, m := range byIndex {
			return &domain.Mappings{Index: name, Mappings: m.Mappings}, nil
		}
	}
	return nil, domain.Errorf(domain.KindNotFound, "no mappings for index %s", index)
}
