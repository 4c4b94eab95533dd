package usecase_test

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/silbaram/elasticsearch-mcp-server/internal/domain"
)

// MockEngine is a recording mock of the Engine capability interface.
type MockEngine struct {
	mock.Mock
	tag domain.EngineVersionTag
}

func newMockEngine() *MockEngine {
	return &MockEngine{tag: domain.EngineVersionTag{Raw: "8.18.1", Major: 8}}
}

func (m *MockEngine) Version() domain.EngineVersionTag { return m.tag }

func (m *MockEngine) Ping(ctx context.Context) (*domain.EngineInfo, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(*domain.EngineInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEngine) Search(ctx context.Context, q domain.QuerySpec) (*domain.SearchResult, error) {
	args := m.Called(ctx, q)
	if v := args.Get(0); v != nil {
		return v.(*domain.SearchResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEngine) GetDocument(ctx context.Context, index domain.IndexRef, id domain.DocumentID) (*domain.Document, error) {
	args := m.Called(ctx, index, id)
	if v := args.Get(0); v != nil {
		return v.(*domain.Document), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEngine) IndexDocument(ctx context.Context, index domain.IndexRef, id domain.DocumentID, payload json.RawMessage, opts domain.IndexOptions) (*domain.WriteResult, error) {
	args := m.Called(ctx, index, id, payload, opts)
	if v := args.Get(0); v != nil {
		return v.(*domain.WriteResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEngine) DeleteDocument(ctx context.Context, index domain.IndexRef, id domain.DocumentID, opts domain.IndexOptions) (*domain.WriteResult, error) {
	args := m.Called(ctx, index, id, opts)
	if v := args.Get(0); v != nil {
		return v.(*domain.WriteResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEngine) BulkWrite(ctx context.Context, ops []domain.WriteOp, refresh bool) (*domain.BulkResult, error) {
	args := m.Called(ctx, ops, refresh)
	if v := args.Get(0); v != nil {
		return v.(*domain.BulkResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEngine) ClusterHealth(ctx context.Context) (*domain.ClusterHealth, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(*domain.ClusterHealth), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEngine) ListIndices(ctx context.Context, pattern string) ([]domain.IndexInfo, error) {
	args := m.Called(ctx, pattern)
	if v := args.Get(0); v != nil {
		return v.([]domain.IndexInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEngine) ListAliases(ctx context.Context, pattern string) ([]domain.AliasInfo, error) {
	args := m.Called(ctx, pattern)
	if v := args.Get(0); v != nil {
		return v.([]domain.AliasInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEngine) GetMappings(ctx context.Context, index domain.IndexRef) (*domain.Mappings, error) {
	args := m.Called(ctx, index)
	if v := args.Get(0); v != nil {
		return v.(*domain.Mappings), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEngine) ClusterStats(ctx context.Context) (*domain.ClusterStats, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(*domain.ClusterStats), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEngine) ShardAllocation(ctx context.Context, nodeID string) ([]domain.AllocationInfo, error) {
	args := m.Called(ctx, nodeID)
	if v := args.Get(0); v != nil {
		return v.([]domain.AllocationInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEngine) Close() error {
	args := m.Called()
	return args.Error(0)
}
