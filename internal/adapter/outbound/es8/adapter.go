// Package es8 adapts the 8.x engine releases through the typed client of
// go-elasticsearch v8. Requests are built with the typed API builders; bodies
// are sent raw and decoded into the shared eswire shapes so no typed response
// ever leaves the package.
package es8

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/optype"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/refresh"

	"github.com/silbaram/elasticsearch-mcp-server/configs"
	"github.com/silbaram/elasticsearch-mcp-server/internal/adapter/outbound/eswire"
	"github.com/silbaram/elasticsearch-mcp-server/internal/domain"
	"github.com/silbaram/elasticsearch-mcp-server/internal/usecase"
)

// Adapter implements usecase.Engine for 8.x clusters.
type Adapter struct {
	client    *elasticsearch.TypedClient
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
	client, err := elasticsearch.NewTypedClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create 8.x client: %w", err)
	}
	return &Adapter{
		client:    client,
		transport: transport,
		tag:       tag,
		logger:    logger.With("component", "es8_adapter", slog.String("engine_version", tag.String())),
	}, nil
}

// NewEngine is the usecase.EngineFactory for the 8.x family.
func NewEngine(cfg configs.ElasticsearchConfig, tag domain.EngineVersionTag, logger *slog.Logger) (usecase.Engine, error) {
	return New(cfg, tag, logger)
}

func (a *Adapter) Version() domain.EngineVersionTag { return a.tag }

// Close drops pooled connections. In-flight requests are not interrupted.
func (a *Adapter) Close() error {
	a.transport.CloseIdleConnections()
	return nil
}

type performer func(ctx context.Context) (*http.Response, error)

// do runs one request and decodes a 2xx body into out. fallback is the error
// message used when a failed response carries no engine error body.
func (a *Adapter) do(ctx context.Context, what, fallback string, perform performer, out any) error {
	log := a.logger.With(slog.String("request", what))
	log.Debug("Sending request")

	res, err := perform(ctx)
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

	if res.StatusCode >= http.StatusMultipleChoices {
		return eswire.ResponseError(res.StatusCode, body, fallback)
	}
	if out == nil {
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		*raw = body
		return nil
	}
	return eswire.Decode(body, out, what)
}

func (a *Adapter) Ping(ctx context.Context) (*domain.EngineInfo, error) {
	var info eswire.InfoResponse
	if err := a.do(ctx, "info", "", a.client.Info().Perform, &info); err != nil {
		return nil, err
	}
	return info.Domain(), nil
}

func (a *Adapter) Search(ctx context.Context, q domain.QuerySpec) (*domain.SearchResult, error) {
	body, err := eswire.SearchBody(q, true)
	if err != nil {
		return nil, err
	}
	req := a.client.Search().Index(string(q.Index)).Raw(bytes.NewReader(body))

	var res eswire.SearchResponse
	if err := a.do(ctx, "search", "index "+string(q.Index)+" not found", req.Perform, &res); err != nil {
		return nil, err
	}
	return res.Domain()
}

func (a *Adapter) GetDocument(ctx context.Context, index domain.IndexRef, id domain.DocumentID) (*domain.Document, error) {
	var res eswire.GetResponse
	fallback := fmt.Sprintf("document %s/%s not found", index, id)
	if err := a.do(ctx, "get", fallback, a.client.Get(string(index), string(id)).Perform, &res); err != nil {
		return nil, err
	}
	return res.Domain(), nil
}

func (a *Adapter) IndexDocument(ctx context.Context, index domain.IndexRef, id domain.DocumentID, payload json.RawMessage, opts domain.IndexOptions) (*domain.WriteResult, error) {
	req := a.client.Index(string(index)).Id(string(id)).Raw(bytes.NewReader(payload))
	if opts.Refresh {
		req.Refresh(refresh.True)
	}
	if opts.OpType == domain.OpTypeCreate {
		req.OpType(optype.Create)
	}
	if opts.IfSeqNo != nil && opts.IfPrimaryTerm != nil {
		req.IfSeqNo(strconv.FormatInt(*opts.IfSeqNo, 10))
		req.IfPrimaryTerm(strconv.FormatInt(*opts.IfPrimaryTerm, 10))
	}

	var res eswire.WriteResponse
	if err := a.do(ctx, "index", "", req.Perform, &res); err != nil {
		return nil, err
	}
	return res.Domain(), nil
}

func (a *Adapter) DeleteDocument(ctx context.Context, index domain.IndexRef, id domain.DocumentID, opts domain.IndexOptions) (*domain.WriteResult, error) {
	req := a.client.Delete(string(index), string(id))
	if opts.Refresh {
		req.Refresh(refresh.True)
	}
	if opts.IfSeqNo != nil && opts.IfPrimaryTerm != nil {
		req.IfSeqNo(strconv.FormatInt(*opts.IfSeqNo, 10))
		req.IfPrimaryTerm(strconv.FormatInt(*opts.IfPrimaryTerm, 10))
	}

	var res eswire.WriteResponse
	fallback := fmt.Sprintf("document %s/%s not found", index, id)
	if err := a.do(ctx, "delete", fallback, req.Perform, &res); err != nil {
		return nil, err
	}
	return res.Domain(), nil
}

func (a *Adapter) BulkWrite(ctx context.Context, ops []domain.WriteOp, refreshAfter bool) (*domain.BulkResult, error) {
	body, err := eswire.BulkBody(ops)
	if err != nil {
		return nil, err
	}
	req := a.client.Bulk().Raw(bytes.NewReader(body))
	if refreshAfter {
		req.Refresh(refresh.True)
	}

	var res eswire.BulkResponse
	if err := a.do(ctx, "bulk", "", req.Perform, &res); err != nil {
		return nil, err
	}
	return res.Domain()
}

func (a *Adapter) ClusterHealth(ctx context.Context) (*domain.ClusterHealth, error) {
	var res eswire.HealthResponse
	if err := a.do(ctx, "cluster health", "", a.client.Cluster.Health().Perform, &res); err != nil {
		return nil, err
	}
	return res.Domain(), nil
}

func (a *Adapter) ListIndices(ctx context.Context, pattern string) ([]domain.IndexInfo, error) {
	req := a.client.Cat.Indices()
	if pattern != "" {
		req.Index(pattern)
	}
	var rows []eswire.CatIndexRow
	if err := a.do(ctx, "cat indices", "", req.Perform, &rows); err != nil {
		return nil, err
	}
	return eswire.Indices(rows), nil
}

func (a *Adapter) ListAliases(ctx context.Context, pattern string) ([]domain.AliasInfo, error) {
	req := a.client.Cat.Aliases()
	if pattern != "" {
		req.Name(pattern)
	}
	var rows []eswire.CatAliasRow
	if err := a.do(ctx, "cat aliases", "", req.Perform, &rows); err != nil {
		return nil, err
	}
	return eswire.Aliases(rows), nil
}

func (a *Adapter) GetMappings(ctx context.Context, index domain.IndexRef) (*domain.Mappings, error) {
	var body []byte
	req := a.client.Indices.GetMapping().Index(string(index))
	if err := a.do(ctx, "mapping", "index "+string(index)+" not found", req.Perform, &body); err != nil {
		return nil, err
	}
	return eswire.MappingsFor(body, index)
}

func (a *Adapter) ClusterStats(ctx context.Context) (*domain.ClusterStats, error) {
	var res eswire.StatsResponse
	if err := a.do(ctx, "cluster stats", "", a.client.Cluster.Stats().Perform, &res); err != nil {
		return nil, err
	}
	return res.Domain(), nil
}

func (a *Adapter) ShardAllocation(ctx context.Context, nodeID string) ([]domain.AllocationInfo, error) {
	req := a.client.Cat.Allocation()
	if nodeID != "" {
		req.NodeId(nodeID)
	}
	var rows []eswire.CatAllocationRow
	if err := a.do(ctx, "cat allocation", "", req.Perform, &rows); err != nil {
		return nil, err
	}
	return eswire.Allocation(rows), nil
}
