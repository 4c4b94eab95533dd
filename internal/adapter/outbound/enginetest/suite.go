// Package enginetest is the behavioural suite every engine adapter must pass.
// Each release package runs it against an esfake server that reports the
// release's version number.
package enginetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/silbaram/elasticsearch-mcp-server/configs"
	"github.com/silbaram/elasticsearch-mcp-server/internal/adapter/outbound/esfake"
	"github.com/silbaram/elasticsearch-mcp-server/internal/domain"
	"github.com/silbaram/elasticsearch-mcp-server/internal/usecase"
)

// Factory builds the adapter under test.
type Factory func(cfg configs.ElasticsearchConfig, tag domain.EngineVersionTag, logger *slog.Logger) (usecase.Engine, error)

// Logger discards output; adapter logs are noise in test runs.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	t       *testing.T
	version string
	factory Factory
}

// Run executes the suite. version is what the fake engine reports from GET /.
func Run(t *testing.T, version string, factory Factory) {
	h := harness{t: t, version: version, factory: factory}
	t.Run("Ping", h.testPing)
	t.Run("DocumentLifecycle", h.testDocumentLifecycle)
	t.Run("CreateConflict", h.testCreateConflict)
	t.Run("SequenceNumberConflict", h.testSequenceNumberConflict)
	t.Run("MissingTargets", h.testMissingTargets)
	t.Run("InvalidIndexName", h.testInvalidIndexName)
	t.Run("Search", h.testSearch)
	t.Run("Bulk", h.testBulk)
	t.Run("ClusterInspection", h.testClusterInspection)
	t.Run("Unreachable", h.testUnreachable)
	t.Run("Deadline", h.testDeadline)
	t.Run("BasicAuth", h.testBasicAuth)
	t.Run("ConcurrentWrites", h.testConcurrentWrites)
}

func (h harness) start(t *testing.T, opts ...esfake.Option) (*esfake.Server, usecase.Engine) {
	t.Helper()
	srv := esfake.New(append([]esfake.Option{esfake.WithVersion(h.version)}, opts...)...)
	t.Cleanup(srv.Close)
	return srv, h.connect(t, configs.ElasticsearchConfig{Hosts: []string{srv.URL()}})
}

func (h harness) connect(t *testing.T, cfg configs.ElasticsearchConfig) usecase.Engine {
	t.Helper()
	cfg.MaxRetries = -1
	tag, err := domain.ParseEngineVersion(h.version)
	require.NoError(t, err)
	engine, err := h.factory(cfg.WithDefaults(), tag, Logger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func kindOf(err error) domain.Kind { return domain.KindOf(err) }

func (h harness) testPing(t *testing.T) {
	assert := assert.New(t)
	_, engine := h.start(t)

	info, err := engine.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(h.version, info.VersionNumber)
	assert.Equal("esfake", info.ClusterName)
	assert.Equal(engine.Version().Major, info.Major())
}

func (h harness) testDocumentLifecycle(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	_, engine := h.start(t)

	created, err := engine.IndexDocument(ctx, "books", "1", json.RawMessage(`{"title":"Learning Go","pages":300}`), domain.IndexOptions{Refresh: true})
	require.NoError(t, err)
	assert.Equal("created", created.Result)
	assert.Equal(int64(1), created.Version)

	doc, err := engine.GetDocument(ctx, "books", "1")
	require.NoError(t, err)
	assert.JSONEq(`{"title":"Learning Go","pages":300}`, string(doc.Source))
	assert.Equal("books", doc.Index)

	updated, err := engine.IndexDocument(ctx, "books", "1", json.RawMessage(`{"title":"Learning Go","pages":320}`), domain.IndexOptions{})
	require.NoError(t, err)
	assert.Equal("updated", updated.Result)
	assert.Equal(int64(2), updated.Version)

	deleted, err := engine.DeleteDocument(ctx, "books", "1", domain.IndexOptions{})
	require.NoError(t, err)
	assert.Equal("deleted", deleted.Result)

	_, err = engine.GetDocument(ctx, "books", "1")
	assert.Equal(domain.KindNotFound, kindOf(err))
	assert.ErrorIs(err, domain.ErrNotFound)

	_, err = engine.DeleteDocument(ctx, "books", "1", domain.IndexOptions{})
	assert.Equal(domain.KindNotFound, kindOf(err))
}

func (h harness) testCreateConflict(t *testing.T) {
	ctx := context.Background()
	_, engine := h.start(t)
	create := domain.IndexOptions{OpType: domain.OpTypeCreate}

	_, err := engine.IndexDocument(ctx, "books", "1", json.RawMessage(`{"title":"a"}`), create)
	require.NoError(t, err)

	_, err = engine.IndexDocument(ctx, "books", "1", json.RawMessage(`{"title":"b"}`), create)
	assert.Equal(t, domain.KindConflict, kindOf(err))
	assert.Contains(t, err.Error(), "version_conflict_engine_exception")
}

func (h harness) testSequenceNumberConflict(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	_, engine := h.start(t)

	first, err := engine.IndexDocument(ctx, "books", "1", json.RawMessage(`{"title":"a"}`), domain.IndexOptions{})
	require.NoError(t, err)
	require.NotNil(t, first.SeqNo)
	require.NotNil(t, first.PrimaryTerm)

	stale := *first.SeqNo + 5
	_, err = engine.IndexDocument(ctx, "books", "1", json.RawMessage(`{"title":"b"}`),
		domain.IndexOptions{IfSeqNo: &stale, IfPrimaryTerm: first.PrimaryTerm})
	assert.Equal(domain.KindConflict, kindOf(err))

	second, err := engine.IndexDocument(ctx, "books", "1", json.RawMessage(`{"title":"c"}`),
		domain.IndexOptions{IfSeqNo: first.SeqNo, IfPrimaryTerm: first.PrimaryTerm})
	require.NoError(t, err)
	assert.Equal("updated", second.Result)

	_, err = engine.DeleteDocument(ctx, "books", "1", domain.IndexOptions{IfSeqNo: first.SeqNo, IfPrimaryTerm: first.PrimaryTerm})
	assert.Equal(domain.KindConflict, kindOf(err))
}

func (h harness) testMissingTargets(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	_, engine := h.start(t)

	_, err := engine.GetDocument(ctx, "nope", "1")
	assert.Equal(domain.KindNotFound, kindOf(err))
	assert.Contains(err.Error(), "index_not_found_exception")

	_, err = engine.Search(ctx, domain.QuerySpec{Index: "nope", Query: map[string]any{"match_all": map[string]any{}}, Size: 10})
	assert.Equal(domain.KindNotFound, kindOf(err))

	_, err = engine.GetMappings(ctx, "nope")
	assert.Equal(domain.KindNotFound, kindOf(err))
}

func (h harness) testInvalidIndexName(t *testing.T) {
	_, engine := h.start(t)
	_, err := engine.IndexDocument(context.Background(), "_bad", "1", json.RawMessage(`{"a":1}`), domain.IndexOptions{})
	assert.Equal(t, domain.KindInvalidArgument, kindOf(err))
}

func (h harness) testSearch(t *testing.T) {
	ctx := context.Background()
	_, engine := h.start(t)

	titles := []string{"Learning Go", "Go in Action", "Rust for Rustaceans", "The Go Programming Language"}
	for i, title := range titles {
		doc := fmt.Sprintf(`{"title":%q,"rank":%d}`, title, i)
		_, err := engine.IndexDocument(ctx, "books", domain.DocumentID(fmt.Sprint(i)), json.RawMessage(doc), domain.IndexOptions{Refresh: true})
		require.NoError(t, err)
	}

	tests := []struct {
		name      string
		query     map[string]any
		size      int
		from      int
		wantTotal int64
		wantHits  int
	}{
		{name: "match all", query: map[string]any{"match_all": map[string]any{}}, size: 10, wantTotal: 4, wantHits: 4},
		{name: "match", query: map[string]any{"match": map[string]any{"title": "go"}}, size: 10, wantTotal: 3, wantHits: 3},
		{name: "paged", query: map[string]any{"match": map[string]any{"title": "go"}}, size: 2, from: 2, wantTotal: 3, wantHits: 1},
		{name: "range", query: map[string]any{"range": map[string]any{"rank": map[string]any{"gte": 2}}}, size: 10, wantTotal: 2, wantHits: 2},
		{name: "no match", query: map[string]any{"term": map[string]any{"title": "python"}}, size: 10, wantTotal: 0, wantHits: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			res, err := engine.Search(ctx, domain.QuerySpec{Index: "books", Query: tt.query, Size: tt.size, From: tt.from})
			require.NoError(t, err)
			assert.Equal(tt.wantTotal, res.Total)
			assert.Equal("eq", res.TotalRelation)
			assert.Len(res.Hits, tt.wantHits)
			for _, hit := range res.Hits {
				assert.Equal("books", hit.Index)
				assert.NotEmpty(hit.Source)
			}
		})
	}

	t.Run("sorted", func(t *testing.T) {
		res, err := engine.Search(ctx, domain.QuerySpec{
			Index: "books",
			Query: map[string]any{"match_all": map[string]any{}},
			Size:  10,
			Sort:  []any{map[string]any{"rank": "desc"}},
		})
		require.NoError(t, err)
		require.Len(t, res.Hits, 4)
		assert.Equal(t, "3", res.Hits[0].ID)
		assert.Equal(t, "0", res.Hits[3].ID)
	})
}

func (h harness) testBulk(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	_, engine := h.start(t)

	_, err := engine.IndexDocument(ctx, "books", "taken", json.RawMessage(`{"title":"x"}`), domain.IndexOptions{})
	require.NoError(t, err)

	res, err := engine.BulkWrite(ctx, []domain.WriteOp{
		{Action: domain.WriteActionIndex, Index: "books", ID: "1", Document: json.RawMessage(`{"title":"one"}`)},
		{Action: domain.WriteActionCreate, Index: "books", ID: "taken", Document: json.RawMessage(`{"title":"dup"}`)},
		{Action: domain.WriteActionDelete, Index: "books", ID: "missing"},
		{Action: domain.WriteActionDelete, Index: "books", ID: "1"},
	}, true)
	require.NoError(t, err)
	require.Len(t, res.Items, 4)

	assert.True(res.Errors)
	assert.Equal(domain.WriteActionIndex, res.Items[0].Action)
	assert.Nil(res.Items[0].Error)
	require.NotNil(t, res.Items[1].Error)
	assert.Equal(domain.KindConflict, res.Items[1].Error.Kind)
	assert.Nil(res.Items[2].Error, "deleting a missing document is not an item failure")
	assert.Equal("not_found", res.Items[2].Result)
	assert.Equal("deleted", res.Items[3].Result)
}

func (h harness) testClusterInspection(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	srv, engine := h.start(t)

	health, err := engine.ClusterHealth(ctx)
	require.NoError(t, err)
	assert.Equal("green", health.Status)
	assert.Equal(1, health.NumberOfNodes)

	for _, name := range []string{"logs-2024", "logs-2025", "metrics"} {
		_, err := engine.IndexDocument(ctx, domain.IndexRef(name), "1", json.RawMessage(`{"message":"hello","at":"2025-01-02T03:04:05Z","n":1}`), domain.IndexOptions{})
		require.NoError(t, err)
	}
	srv.AddAlias("logs", "logs-2025", true)
	srv.AddAlias(".internal", "metrics", false)

	health, err = engine.ClusterHealth(ctx)
	require.NoError(t, err)
	assert.Equal("yellow", health.Status)

	indices, err := engine.ListIndices(ctx, "logs-*")
	require.NoError(t, err)
	require.Len(t, indices, 2)
	assert.Equal("logs-2024", indices[0].Index)
	assert.Equal("1", indices[0].DocsCount)

	all, err := engine.ListIndices(ctx, "")
	require.NoError(t, err)
	assert.Len(all, 3)

	aliases, err := engine.ListAliases(ctx, "")
	require.NoError(t, err)
	require.Len(t, aliases, 1)
	assert.Equal("logs", aliases[0].Alias)
	assert.Equal("logs-2025", aliases[0].Index)
	assert.Equal("true", aliases[0].IsWriteIndex)

	mappings, err := engine.GetMappings(ctx, "logs")
	require.NoError(t, err)
	assert.Equal("logs-2025", mappings.Index)
	var m struct {
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(mappings.Mappings, &m))
	assert.Equal("text", m.Properties["message"].Type)
	assert.Equal("date", m.Properties["at"].Type)
	assert.Equal("long", m.Properties["n"].Type)

	stats, err := engine.ClusterStats(ctx)
	require.NoError(t, err)
	assert.Equal(3, stats.IndicesCount)
	assert.Equal(int64(3), stats.DocsCount)
	assert.Equal(1, stats.NodesTotal)
	assert.InDelta(25.0, stats.HeapUsedPercent, 0.01)

	alloc, err := engine.ShardAllocation(ctx, "")
	require.NoError(t, err)
	require.Len(t, alloc, 2)
	assert.Equal("esfake-node-1", alloc[0].Node)
	assert.Equal("3", alloc[0].Shards)
	assert.Equal("UNASSIGNED", alloc[1].Node)
	assert.Empty(alloc[1].Host)

	alloc, err = engine.ShardAllocation(ctx, "other-node")
	require.NoError(t, err)
	require.Len(t, alloc, 1)
	assert.Equal("UNASSIGNED", alloc[0].Node)
}

func (h harness) testUnreachable(t *testing.T) {
	srv := esfake.New()
	url := srv.URL()
	srv.Close()

	engine := h.connect(t, configs.ElasticsearchConfig{Hosts: []string{url}})
	_, err := engine.Ping(context.Background())
	assert.Equal(t, domain.KindEngineUnavailable, kindOf(err))
	assert.ErrorIs(t, err, domain.ErrEngineUnavailable)
}

func (h harness) testDeadline(t *testing.T) {
	srv, engine := h.start(t)
	// Warm up so client-side product checks are done before the delay.
	_, err := engine.Ping(context.Background())
	require.NoError(t, err)

	srv.SetDelay(2 * time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = engine.ClusterHealth(ctx)
	assert.Equal(t, domain.KindTimeout, kindOf(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)
}

func (h harness) testBasicAuth(t *testing.T) {
	srv := esfake.New(esfake.WithVersion(h.version), esfake.WithBasicAuth("elastic", "changeme"))
	t.Cleanup(srv.Close)

	good := h.connect(t, configs.ElasticsearchConfig{
		Hosts:      []string{srv.URL()},
		AuthConfig: configs.AuthConfig{Username: "elastic", Password: "changeme"},
	})
	_, err := good.ClusterHealth(context.Background())
	assert.NoError(t, err)

	bad := h.connect(t, configs.ElasticsearchConfig{
		Hosts:      []string{srv.URL()},
		AuthConfig: configs.AuthConfig{Username: "elastic", Password: "wrong"},
	})
	_, err = bad.ClusterHealth(context.Background())
	assert.Equal(t, domain.KindEngineUnavailable, kindOf(err))
	assert.Contains(t, err.Error(), "security_exception")
}

func (h harness) testConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	_, engine := h.start(t)

	const n = 32
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			doc := json.RawMessage(fmt.Sprintf(`{"worker":%d}`, i))
			_, err := engine.IndexDocument(gctx, "jobs", domain.DocumentID(fmt.Sprint(i)), doc, domain.IndexOptions{})
			return err
		})
	}
	require.NoError(t, g.Wait())

	res, err := engine.Search(ctx, domain.QuerySpec{Index: "jobs", Query: map[string]any{"match_all": map[string]any{}}, Size: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(n), res.Total)
	assert.Len(t, res.Hits, n)
}
