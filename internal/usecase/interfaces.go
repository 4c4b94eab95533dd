package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/silbaram/elasticsearch-mcp-server/configs"
	"github.com/silbaram/elasticsearch-mcp-server/internal/domain"
)

// Standard errors returned by use cases and adapters.
var (
	ErrToolNotFound      = errors.New("tool not found")
	ErrRegistryFrozen    = errors.New("tool registry is read-only after startup")
	ErrDuplicateTool     = errors.New("duplicate tool name")
	ErrUnsupportedEngine = errors.New("unsupported engine version")
)

// --- Capability Interface ---

// Engine is the version-agnostic contract every engine-release adapter implements.
// Implementations must be safe for concurrent use and must not leak
// release-specific types: callers only ever see domain value objects.
// Failures are *domain.Error values.
type Engine interface {
	// Version is the tag this adapter targets.
	Version() domain.EngineVersionTag

	// Ping contacts the engine and reports what it is. Used as the startup check.
	Ping(ctx context.Context) (*domain.EngineInfo, error)

	Search(ctx context.Context, q domain.QuerySpec) (*domain.SearchResult, error)
	GetDocument(ctx context.Context, index domain.IndexRef, id domain.DocumentID) (*domain.Document, error)
	IndexDocument(ctx context.Context, index domain.IndexRef, id domain.DocumentID, payload json.RawMessage, opts domain.IndexOptions) (*domain.WriteResult, error)
	DeleteDocument(ctx context.Context, index domain.IndexRef, id domain.DocumentID, opts domain.IndexOptions) (*domain.WriteResult, error)
	// BulkWrite reports per-item outcomes in the result; only request-level
	// failures are returned as errors.
	BulkWrite(ctx context.Context, ops []domain.WriteOp, refresh bool) (*domain.BulkResult, error)
	ClusterHealth(ctx context.Context) (*domain.ClusterHealth, error)

	ListIndices(ctx context.Context, pattern string) ([]domain.IndexInfo, error)
	// ListAliases omits hidden aliases whose name starts with ".".
	ListAliases(ctx context.Context, pattern string) ([]domain.AliasInfo, error)
	GetMappings(ctx context.Context, index domain.IndexRef) (*domain.Mappings, error)
	ClusterStats(ctx context.Context) (*domain.ClusterStats, error)
	ShardAllocation(ctx context.Context, nodeID string) ([]domain.AllocationInfo, error)

	// Close releases the adapter's connection pool.
	Close() error
}

// EngineFactory builds the adapter for one engine major release.
type EngineFactory func(cfg configs.ElasticsearchConfig, tag domain.EngineVersionTag, logger *slog.Logger) (Engine, error)

// --- Tool Registry ---

// ToolRegistry stores the static tool catalog. Registration happens once at
// startup; afterwards the registry is read-only.
type ToolRegistry interface {
	// Register stores descriptors. A second call fails with ErrRegistryFrozen.
	Register(ctx context.Context, tools []domain.ToolDescriptor) error

	// List returns all descriptors in registration order.
	List(ctx context.Context) ([]domain.ToolDescriptor, error)

	// FindToolByName returns ErrToolNotFound for unknown names.
	FindToolByName(ctx context.Context, name string) (*domain.ToolDescriptor, error)
}

// --- Observability ---

// DispatchObserver is notified when a dispatch finishes. Implementations must be
// safe for concurrent use and must not block.
type DispatchObserver interface {
	ObserveDispatch(ctx context.Context, obs DispatchObservation)
}

// DispatchObservation summarizes one dispatched invocation.
type DispatchObservation struct {
	Tool          string
	Operation     domain.Operation
	CorrelationID string
	EngineVersion string
	State         DispatchState
	ErrorKind     domain.Kind
	Duration      time.Duration
}
