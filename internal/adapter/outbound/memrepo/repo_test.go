package memrepo_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silbaram/elasticsearch-mcp-server/internal/adapter/outbound/memrepo"
	"github.com/silbaram/elasticsearch-mcp-server/internal/domain"
	"github.com/silbaram/elasticsearch-mcp-server/internal/usecase"
)

func newTestRegistry(t *testing.T) *memrepo.InMemoryToolRegistry {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return memrepo.NewInMemoryToolRegistry(logger)
}

func TestInMemoryToolRegistry_RegisterAndList(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	tool1 := domain.ToolDescriptor{Name: "tool1", Description: "T1", Operation: domain.OpSearch}
	tool2 := domain.ToolDescriptor{Name: "tool2", Description: "T2", Operation: domain.OpClusterHealth}

	tests := []struct {
		name       string
		inTools    []domain.ToolDescriptor
		wantErr    bool
		wantErrIs  error
		wantList   []domain.ToolDescriptor
		wantFrozen bool
	}{
		{
			name:       "Register single tool",
			inTools:    []domain.ToolDescriptor{tool1},
			wantList:   []domain.ToolDescriptor{tool1},
			wantFrozen: true,
		},
		{
			name:       "Register keeps order",
			inTools:    []domain.ToolDescriptor{tool2, tool1},
			wantList:   []domain.ToolDescriptor{tool2, tool1},
			wantFrozen: true,
		},
		{
			name:      "Duplicate name rejected",
			inTools:   []domain.ToolDescriptor{tool1, tool1},
			wantErr:   true,
			wantErrIs: usecase.ErrDuplicateTool,
			wantList:  []domain.ToolDescriptor{},
		},
		{
			name:     "Empty name rejected",
			inTools:  []domain.ToolDescriptor{{Description: "Empty"}, tool1},
			wantErr:  true,
			wantList: []domain.ToolDescriptor{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestRegistry(t)

			err := repo.Register(ctx, tt.inTools)
			if tt.wantErr {
				assert.Error(err)
				if tt.wantErrIs != nil {
					assert.ErrorIs(err, tt.wantErrIs)
				}
			} else {
				assert.NoError(err)
			}

			listed, listErr := repo.List(ctx)
			require.NoError(listErr)
			assert.Equal(tt.wantList, listed)

			second := repo.Register(ctx, []domain.ToolDescriptor{tool2})
			if tt.wantFrozen {
				assert.ErrorIs(second, usecase.ErrRegistryFrozen)
			} else {
				assert.NoError(second, "a failed registration must not freeze the registry")
			}
		})
	}
}

func TestInMemoryToolRegistry_FindByName(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	repo := newTestRegistry(t)

	require.NoError(repo.Register(ctx, usecase.Catalog()))

	tests := []struct {
		name    string
		inName  string
		wantOp  domain.Operation
		wantErr bool
	}{
		{name: "Find search", inName: usecase.ToolSearch, wantOp: domain.OpSearch},
		{name: "Find bulk_write", inName: usecase.ToolBulkWrite, wantOp: domain.OpBulkWrite},
		{name: "Find non-existent tool", inName: "drop_index", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := repo.FindToolByName(ctx, tt.inName)
			if tt.wantErr {
				assert.ErrorIs(err, usecase.ErrToolNotFound)
				assert.Nil(actual)
				return
			}
			assert.NoError(err)
			assert.Equal(tt.inName, actual.Name)
			assert.Equal(tt.wantOp, actual.Operation)
		})
	}
}

func TestInMemoryToolRegistry_ConcurrentReads(t *testing.T) {
	ctx := context.Background()
	repo := newTestRegistry(t)
	require.NoError(t, repo.Register(ctx, usecase.Catalog()))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tools, err := repo.List(ctx)
			assert.NoError(t, err)
			assert.Len(t, tools, len(usecase.Catalog()))
			_, err = repo.FindToolByName(ctx, usecase.ToolClusterHealth)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
