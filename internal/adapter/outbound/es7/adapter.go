// Package es7 adapts the 7.x engine releases through the esapi functional-option
// client of go-elasticsearch v7.
package es7

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"

	"github.com/silbaram/elasticsearch-mcp-server/configs"
	"github.com/silbaram/elasticsearch-mcp-server/internal/adapter/outbound/eswire"
	"github.com/silbaram/elasticsearch-mcp-server/internal/domain"
	"github.com/silbaram/elasticsearch-mcp-server/internal/usecase"
)

// Adapter implements usecase.Engine for 7.x clusters.
type Adapter struct {
	client    *elasticsearch.Client
	transport *http.Transport
	tag       domain.EngineVersionTag
	logger    *slog.Logger
}

var _ usecase.Engine = (*Adapter)(nil)

// New creates the adapter. No request is sent until the first operation.
func New(cfg configs.ElasticsearchConfig, tag domain.EngineVersionTag, logger *slog.Logger) (*Adapter, error) {
	transport := eswire.Transport(cfg)
	esCfg := elasticsearch.Config{
		Addresses:    cfg.Hosts,
		CloudID:      cfg.CloudID,
		APIKey:       cfg.APIKey,
		MaxRetries:   cfg.MaxRetries,
		DisableRetry: cfg.MaxRetries <= 0,
		Transport:    transport,
	}
	if cfg.APIKey == "" {
		if u, p, ok := cfg.BasicAuth(); ok {
			esCfg.Username, esCfg.Password = u, p
		}
	}
	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create 7.x client: %w", err)
	}
	return &Adapter{
		client:    client,
		transport: transport,
		tag:       tag,
		logger:    logger.With("component", "es7_adapter", slog.String("engine_version", tag.String())),
	}, nil
}

// NewEngine is the usecase.EngineFactory for the 7.x family.
func NewEngine(cfg configs.ElasticsearchConfig, tag domain.EngineVersionTag, logger *slog.Logger) (usecase.Engine, error) {
	return New(cfg, tag, logger)
}

func (a *Adapter) Version() domain.EngineVersionTag { return a.tag }

// Close drops pooled connections. In-flight requests are not interrupted.
func (a *Adapter) Close() error {
	a.transport.CloseIdleConnections()
	return nil
}

// read checks and decodes an esapi response. out may be *[]byte to receive the raw body.
func (a *Adapter) read(ctx context.Context, what, fallback string, res *esapi.Response, err error, out any) error {
	log := a.logger.With(slog.String("request", what))
	if err != nil {
		log.Warn("Request failed", slog.Any("error", err))
		return eswire.RequestError(ctx, err)
	}
	defer res.Body.Close()

	body, err := eswire.ReadBody(res.Body)
	if err != nil {
		return err
	}
	log.Debug("Received response", slog.Int("status_code", res.StatusCode), slog.Int("size", len(body)))

	if res.IsError() {
		return eswire.ResponseError(res.StatusCode, body, fallback)
	}
	if raw, ok := out.(*[]byte); ok {
		*raw = body
		return nil
	}
	return eswire.Decode(body, out, what)
}

func (a *Adapter) Ping(ctx context.Context) (*domain.EngineInfo, error) {
	res, err := a.client.Info(a.client.Info.WithContext(ctx))

	var info eswire.InfoResponse
	if err := a.read(ctx, "info", "", res, err, &info); err != nil {
		return nil, err
	}
	return info.Domain(), nil
}

// Search sends paging as query-string parameters, the form every 7.x release accepts.
func (a *Adapter) Search(ctx context.Context, q domain.QuerySpec) (*domain.SearchResult, error) {
	body, err := eswire.SearchBody(q, false)
	if err != nil {
		return nil, err
	}
	search := a.client.Search
	res, err := search(
		search.WithContext(ctx),
		search.WithIndex(string(q.Index)),
		search.WithBody(bytes.NewReader(body)),
		search.WithSize(q.Size),
		search.WithFrom(q.From),
		search.WithTrackTotalHits(true),
	)

	var out eswire.SearchResponse
	if err := a.read(ctx, "search", "index "+string(q.Index)+" not found", res, err, &out); err != nil {
		return nil, err
	}
	return out.Domain()
}

func (a *Adapter) GetDocument(ctx context.Context, index domain.IndexRef, id domain.DocumentID) (*domain.Document, error) {
	res, err := a.client.Get(string(index), string(id), a.client.Get.WithContext(ctx))

	var out eswire.GetResponse
	if err := a.read(ctx, "get", fmt.Sprintf("document %s/%s not found", index, id), res, err, &out); err != nil {
		return nil, err
	}
	return out.Domain(), nil
}

func (a *Adapter) IndexDocument(ctx context.Context, index domain.IndexRef, id domain.DocumentID, payload json.RawMessage, opts domain.IndexOptions) (*domain.WriteResult, error) {
	idx := a.client.Index
	params := []func(*esapi.IndexRequest){
		idx.WithContext(ctx),
		idx.WithDocumentID(string(id)),
		idx.WithRefresh(eswire.RefreshParam(opts.Refresh)),
	}
	if opts.OpType == domain.OpTypeCreate {
		params = append(params, idx.WithOpType(string(domain.OpTypeCreate)))
	}
	if opts.IfSeqNo != nil && opts.IfPrimaryTerm != nil {
		params = append(params, idx.WithIfSeqNo(int(*opts.IfSeqNo)), idx.WithIfPrimaryTerm(int(*opts.IfPrimaryTerm)))
	}
	res, err := idx(string(index), bytes.NewReader(payload), params...)

	var out eswire.WriteResponse
	if err := a.read(ctx, "index", "", res, err, &out); err != nil {
		return nil, err
	}
	return out.Domain(), nil
}

func (a *Adapter) DeleteDocument(ctx context.Context, index domain.IndexRef, id domain.DocumentID, opts domain.IndexOptions) (*domain.WriteResult, error) {
	del := a.client.Delete
	params := []func(*esapi.DeleteRequest){
		del.WithContext(ctx),
		del.WithRefresh(eswire.RefreshParam(opts.Refresh)),
	}
	if opts.IfSeqNo != nil && opts.IfPrimaryTerm != nil {
		params = append(params, del.WithIfSeqNo(int(*opts.IfSeqNo)), del.WithIfPrimaryTerm(int(*opts.IfPrimaryTerm)))
	}
	res, err := del(string(index), string(id), params...)

	var out eswire.WriteResponse
	if err := a.read(ctx, "delete", fmt.Sprintf("document %s/%s not found", index, id), res, err, &out); err != nil {
		return nil, err
	}
	return out.Domain(), nil
}

func (a *Adapter) BulkWrite(ctx context.Context, ops []domain.WriteOp, refresh bool) (*domain.BulkResult, error) {
	body, err := eswire.BulkBody(ops)
	if err != nil {
		return nil, err
	}
	bulk := a.client.Bulk
	res, err := bulk(bytes.NewReader(body), bulk.WithContext(ctx), bulk.WithRefresh(eswire.RefreshParam(refresh)))

	var out eswire.BulkResponse
	if err := a.read(ctx, "bulk", "", res, err, &out); err != nil {
		return nil, err
	}
	return out.Domain()
}

func (a *Adapter) ClusterHealth(ctx context.Context) (*domain.ClusterHealth, error) {
	health := a.client.Cluster.Health
	res, err := health(health.WithContext(ctx))

	var out eswire.HealthResponse
	if err := a.read(ctx, "cluster health", "", res, err, &out); err != nil {
		return nil, err
	}
	return out.Domain(), nil
}

func (a *Adapter) ListIndices(ctx context.Context, pattern string) ([]domain.IndexInfo, error) {
	cat := a.client.Cat.Indices
	params := []func(*esapi.CatIndicesRequest){cat.WithContext(ctx), cat.WithFormat("json")}
	if pattern != "" {
		params = append(params, cat.WithIndex(pattern))
	}
	res, err := cat(params...)

	var rows []eswire.CatIndexRow
	if err := a.read(ctx, "cat indices", "", res, err, &rows); err != nil {
		return nil, err
	}
	return eswire.Indices(rows), nil
}

func (a *Adapter) ListAliases(ctx context.Context, pattern string) ([]domain.AliasInfo, error) {
	cat := a.client.Cat.Aliases
	params := []func(*esapi.CatAliasesRequest){cat.WithContext(ctx), cat.WithFormat("json")}
	if pattern != "" {
		params = append(params, cat.WithName(pattern))
	}
	res, err := cat(params...)

	var rows []eswire.CatAliasRow
	if err := a.read(ctx, "cat aliases", "", res, err, &rows); err != nil {
		return nil, err
	}
	return eswire.Aliases(rows), nil
}

func (a *Adapter) GetMappings(ctx context.Context, index domain.IndexRef) (*domain.Mappings, error) {
	get := a.client.Indices.GetMapping
	res, err := get(get.WithContext(ctx), get.WithIndex(string(index)))

	var body []byte
	if err := a.read(ctx, "mapping", "index "+string(index)+" not found", res, err, &body); err != nil {
		return nil, err
	}
	return eswire.MappingsFor(body, index)
}

func (a *Adapter) ClusterStats(ctx context.Context) (*domain.ClusterStats, error) {
	stats := a.client.Cluster.Stats
	res, err := stats(stats.WithContext(ctx))

	var out eswire.StatsResponse
	if err := a.read(ctx, "cluster stats", "", res, err, &out); err != nil {
		return nil, err
	}
	return out.Domain(), nil
}

func (a *Adapter) ShardAllocation(ctx context.Context, nodeID string) ([]domain.AllocationInfo, error) {
	cat := a.client.Cat.Allocation
	params := []func(*esapi.CatAllocationRequest){cat.WithContext(ctx), cat.WithFormat("json")}
	if nodeID != "" {
		params = append(params, cat.WithNodeID(nodeID))
	}
	res, err := cat(params...)

	var rows []eswire.CatAllocationRow
	if err := a.read(ctx, "cat allocation", "", res, err, &rows); err != nil {
		return nil, err
	}
	return eswire.Allocation(rows), nil
}
