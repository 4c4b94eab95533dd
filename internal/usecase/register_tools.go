package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/silbaram/elasticsearch-mcp-server/internal/domain"
)

// RegisterToolsUseCase checks the static catalog and stores it in the registry.
// It runs once during startup, before any transport accepts requests.
type RegisterToolsUseCase struct {
	registry ToolRegistry
	logger   *slog.Logger
}

// NewRegisterToolsUseCase creates a new RegisterToolsUseCase.
func NewRegisterToolsUseCase(registry ToolRegistry, logger *slog.Logger) *RegisterToolsUseCase {
	return &RegisterToolsUseCase{
		registry: registry,
		logger:   logger.With("usecase", "RegisterTools"),
	}
}

// Execute validates the descriptors and registers them.
// Every descriptor needs a unique name, an input schema and a backing operation.
func (uc *RegisterToolsUseCase) Execute(ctx context.Context, tools []domain.ToolDescriptor) error {
	seen := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		if t.Name == "" {
			return fmt.Errorf("tool descriptor without a name for operation %q", t.Operation)
		}
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name)
		}
		seen[t.Name] = struct{}{}
		if t.InputSchema == nil {
			return fmt.Errorf("tool %s has no input schema", t.Name)
		}
		if t.Operation == "" {
			return fmt.Errorf("tool %s is not bound to an operation", t.Name)
		}
		// Schemas are serialized for the protocol; catch marshal problems at startup.
		if _, err := domain.MarshalSchema(t.InputSchema); err != nil {
			return fmt.Errorf("tool %s: %w", t.Name, err)
		}
	}

	if err := uc.registry.Register(ctx, tools); err != nil {
		uc.logger.Error("Failed to register tools", slog.Any("error", err))
		return fmt.Errorf("failed to register tools: %w", err)
	}
	uc.logger.Info("Registered tools", slog.Int("count", len(tools)))
	return nil
}
