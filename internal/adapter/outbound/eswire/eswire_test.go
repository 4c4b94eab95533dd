package eswire_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silbaram/elasticsearch-mcp-server/internal/adapter/outbound/eswire"
	"github.com/silbaram/elasticsearch-mcp-server/internal/domain"
)

func TestResponseError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		fallback string
		wantKind domain.Kind
		wantMsg  string
	}{
		{
			name:     "index missing",
			status:   404,
			body:     `{"error":{"root_cause":[{"type":"index_not_found_exception","reason":"no such index [x]"}],"type":"index_not_found_exception","reason":"no such index [x]"},"status":404}`,
			wantKind: domain.KindNotFound,
			wantMsg:  "index_not_found_exception: no such index [x]",
		},
		{
			name:     "version conflict",
			status:   409,
			body:     `{"error":{"type":"version_conflict_engine_exception","reason":"[1]: version conflict"},"status":409}`,
			wantKind: domain.KindConflict,
			wantMsg:  "version_conflict_engine_exception: [1]: version conflict",
		},
		{
			name:     "document missing uses fallback",
			status:   404,
			body:     `{"_index":"books","_id":"9","found":false}`,
			fallback: "document books/9 not found",
			wantKind: domain.KindNotFound,
			wantMsg:  "document books/9 not found",
		},
		{
			name:     "root cause only",
			status:   400,
			body:     `{"error":{"root_cause":[{"type":"parsing_exception","reason":"unknown query [matchy]"}]},"status":400}`,
			wantKind: domain.KindInvalidArgument,
			wantMsg:  "parsing_exception: unknown query [matchy]",
		},
		{
			name:     "string error from proxy",
			status:   503,
			body:     `{"error":"upstream overloaded"}`,
			wantKind: domain.KindEngineUnavailable,
			wantMsg:  "upstream overloaded",
		},
		{name: "unauthorized", status: 401, wantKind: domain.KindEngineUnavailable, wantMsg: "unauthorized"},
		{name: "gateway timeout", status: 504, body: "<html>", wantKind: domain.KindTimeout, wantMsg: "gateway timeout"},
		{name: "server error", status: 500, wantKind: domain.KindInternal, wantMsg: "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eswire.ResponseError(tt.status, []byte(tt.body), tt.fallback)
			assert.Equal(t, tt.wantKind, err.Kind)
			assert.Equal(t, tt.wantMsg, err.Message)
			assert.NotContains(t, err.Message, "goroutine")
		})
	}
}

func TestTransportError(t *testing.T) {
	refused := &url.Error{Op: "Get", URL: "http://127.0.0.1:1", Err: errors.New("dial tcp 127.0.0.1:1: connect: connection refused")}
	deadline := &url.Error{Op: "Get", URL: "http://es:9200", Err: context.DeadlineExceeded}

	assert.Equal(t, domain.KindEngineUnavailable, eswire.TransportError(refused).Kind)
	assert.Contains(t, eswire.TransportError(refused).Message, "connection refused")
	assert.Equal(t, domain.KindTimeout, eswire.TransportError(deadline).Kind)
	assert.Equal(t, domain.KindTimeout, eswire.TransportError(fmt.Errorf("x: %w", context.Canceled)).Kind)

	typed := domain.Errorf(domain.KindConflict, "c")
	assert.Same(t, typed, eswire.TransportError(typed))
}

func TestSearchResponse_Domain(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantTotal    int64
		wantRelation string
	}{
		{name: "object total", body: `{"took":3,"hits":{"total":{"value":2,"relation":"gte"},"max_score":1.5,"hits":[{"_index":"a","_id":"1","_score":1.5,"_source":{"x":1}},{"_index":"a","_id":"2","_score":0.5,"_source":{"x":2}}]}}`, wantTotal: 2, wantRelation: "gte"},
		{name: "numeric total", body: `{"took":1,"hits":{"total":7,"hits":[]}}`, wantTotal: 7, wantRelation: "eq"},
		{name: "no total", body: `{"took":1,"hits":{"hits":[]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp eswire.SearchResponse
			require.NoError(t, eswire.Decode([]byte(tt.body), &resp, "search"))
			res, err := resp.Domain()
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, res.Total)
			assert.Equal(t, tt.wantRelation, res.TotalRelation)
			assert.NotNil(t, res.Hits)
		})
	}
}

func TestBulkResponse_Domain(t *testing.T) {
	body := `{"took":5,"errors":true,"items":[
		{"index":{"_index":"b","_id":"1","status":201,"result":"created","_version":1}},
		{"create":{"_index":"b","_id":"2","status":409,"error":{"type":"version_conflict_engine_exception","reason":"[2]: document already exists"}}},
		{"delete":{"_index":"b","_id":"3","status":404,"result":"not_found"}}
	]}`
	var resp eswire.BulkResponse
	require.NoError(t, eswire.Decode([]byte(body), &resp, "bulk"))
	res, err := resp.Domain()
	require.NoError(t, err)

	require.Len(t, res.Items, 3)
	assert.True(t, res.Errors)
	assert.Nil(t, res.Items[0].Error)
	assert.Equal(t, domain.WriteActionCreate, res.Items[1].Action)
	assert.Equal(t, domain.KindConflict, res.Items[1].Error.Kind)
	assert.Equal(t, "version_conflict_engine_exception: [2]: document already exists", res.Items[1].Error.Message)
	assert.Equal(t, "not_found", res.Items[2].Result)
	assert.Nil(t, res.Items[2].Error)
}

func TestBulkBody(t *testing.T) {
	body, err := eswire.BulkBody([]domain.WriteOp{
		{Action: domain.WriteActionIndex, Index: "b", ID: "1", Document: json.RawMessage("{\n  \"t\": \"a\"\n}")},
		{Action: domain.WriteActionDelete, Index: "b", ID: "2"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(body), "\n"), "\n")
	assert.Equal(t, []string{
		`{"index":{"_index":"b","_id":"1"}}`,
		`{"t":"a"}`,
		`{"delete":{"_index":"b","_id":"2"}}`,
	}, lines)
	assert.True(t, strings.HasSuffix(string(body), "\n"))

	_, err = eswire.BulkBody([]domain.WriteOp{{Action: domain.WriteActionCreate, Index: "b", ID: "1", Document: json.RawMessage("{")}})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSearchBody(t *testing.T) {
	q := domain.QuerySpec{Index: "a", Query: map[string]any{"match_all": map[string]any{}}, Size: 5, From: 10, Sort: []any{"_doc"}}

	plain, err := eswire.SearchBody(q, false)
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":{"match_all":{}},"sort":["_doc"]}`, string(plain))

	paged, err := eswire.SearchBody(q, true)
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":{"match_all":{}},"sort":["_doc"],"size":5,"from":10,"track_total_hits":true}`, string(paged))
}

func TestCatRows(t *testing.T) {
	var aliases []eswire.CatAliasRow
	require.NoError(t, json.Unmarshal([]byte(`[
		{"alias":"logs","index":"logs-1","filter":"-","routing.index":"-","routing.search":"-","is_write_index":"true"},
		{"alias":".kibana","index":".kibana_1","filter":"-","routing.index":"-","routing.search":"-","is_write_index":"-"}
	]`), &aliases))
	out := eswire.Aliases(aliases)
	require.Len(t, out, 1)
	assert.Equal(t, "logs", out[0].Alias)

	var alloc []eswire.CatAllocationRow
	require.NoError(t, json.Unmarshal([]byte(`[{"shards":"3","disk.indices":null,"disk.percent":12,"node":"n1"}]`), &alloc))
	rows := eswire.Allocation(alloc)
	assert.Equal(t, "12", rows[0].DiskPercent)
	assert.Equal(t, "", rows[0].DiskIndices)

	var indices []eswire.CatIndexRow
	require.NoError(t, json.Unmarshal([]byte(`[{"index":"b","docs.count":"2"},{"index":"a","docs.count":"1"}]`), &indices))
	assert.Equal(t, "a", eswire.Indices(indices)[0].Index)
}

func TestMappingsFor(t *testing.T) {
	body := []byte(`{"books-v2":{"mappings":{"properties":{"title":{"type":"text"}}}}}`)

	m, err := eswire.MappingsFor(body, "books")
	require.NoError(t, err)
	assert.Equal(t, "books-v2", m.Index, "alias resolves to the concrete index")
	assert.JSONEq(t, `{"properties":{"title":{"type":"text"}}}`, string(m.Mappings))

	_, err = eswire.MappingsFor([]byte(`{}`), "books")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
