package memrepo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/silbaram/elasticsearch-mcp-server/internal/domain"
	"github.com/silbaram/elasticsearch-mcp-server/internal/usecase"
)

// InMemoryToolRegistry is the in-memory ToolRegistry.
// It accepts exactly one Register call; afterwards it only serves reads.
type InMemoryToolRegistry struct {
	mu     sync.RWMutex
	frozen bool
	order  []string
	tools  map[string]domain.ToolDescriptor
	logger *slog.Logger
}

var _ usecase.ToolRegistry = (*InMemoryToolRegistry)(nil)

// NewInMemoryToolRegistry creates an empty, writable registry.
func NewInMemoryToolRegistry(logger *slog.Logger) *InMemoryToolRegistry {
	return &InMemoryToolRegistry{
		tools:  make(map[string]domain.ToolDescriptor),
		logger: logger.With("component", "tool_registry"),
	}
}

// Register stores the descriptors and freezes the registry.
// Nothing is stored when the batch contains a duplicate or unnamed tool.
func (r *InMemoryToolRegistry) Register(ctx context.Context, tools []domain.ToolDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		r.logger.Error("Rejected tool registration after startup", slog.Int("count", len(tools)))
		return usecase.ErrRegistryFrozen
	}

	byName := make(map[string]domain.ToolDescriptor, len(tools))
	order := make([]string, 0, len(tools))
	for i, tool := range tools {
		if tool.Name == "" {
			return fmt.Errorf("register failed: tool at index %d has no name", i)
		}
		if _, dup := byName[tool.Name]; dup {
			return fmt.Errorf("register failed: %w: %s", usecase.ErrDuplicateTool, tool.Name)
		}
		byName[tool.Name] = tool
		order = append(order, tool.Name)
	}

	r.tools = byName
	r.order = order
	r.frozen = true
	r.logger.Info("Registered tools", slog.Int("count", len(order)))
	return nil
}

// List returns all descriptors in registration order.
func (r *InMemoryToolRegistry) List(ctx context.Context) ([]domain.ToolDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]domain.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.tools[name])
	}
	r.logger.Debug("Listed tools from registry", slog.Int("count", len(list)))
	return list, nil
}

// FindToolByName retrieves a descriptor by its name.
func (r *InMemoryToolRegistry) FindToolByName(ctx context.Context, name string) (*domain.ToolDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		r.logger.Warn("Tool definition not found", slog.String("tool_name", name))
		return nil, usecase.ErrToolNotFound
	}
	return &tool, nil
}
