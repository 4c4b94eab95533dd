package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/silbaram/elasticsearch-mcp-server/configs"
	"github.com/silbaram/elasticsearch-mcp-server/internal/domain"
)

// DefaultStartupProbeTimeout bounds the startup Ping when none is configured.
const DefaultStartupProbeTimeout = 10 * time.Second

// ResolveEngineUseCase selects the adapter and pings it for the configured engine release.
type ResolveEngineUseCase struct {
	factories map[int]EngineFactory
	logger    *slog.Logger
}

// NewResolveEngineUseCase creates a resolver over an explicit major -> factory table.
func NewResolveEngineUseCase(factories map[int]EngineFactory, logger *slog.Logger) *ResolveEngineUseCase {
	return &ResolveEngineUseCase{
		factories: factories,
		logger:    logger.With("usecase", "ResolveEngine"),
	}
}

// SupportedMajors lists the majors that have a factory, ascending.
func (uc *ResolveEngineUseCase) SupportedMajors() []int {
	majors := make([]int, 0, len(uc.factories))
	for m := range uc.factories {
		majors = append(majors, m)
	}
	sort.Ints(majors)
	return majors
}

// Execute returns a ready adapter or fails before any tool is served.
// The version is cfg.Version, or configs.DefaultEngineVersion when unset.
func (uc *ResolveEngineUseCase) Execute(ctx context.Context, cfg configs.ElasticsearchConfig) (Engine, *domain.EngineInfo, error) {
	raw := cfg.Version
	if raw == "" {
		raw = configs.DefaultEngineVersion
	}
	log := uc.logger.With(slog.String("engine_version", raw))

	tag, err := domain.ParseEngineVersion(raw)
	if err != nil {
		log.Error("Invalid engine version", slog.Any("error", err))
		return nil, nil, fmt.Errorf("%w: %v", ErrUnsupportedEngine, err)
	}

	factory, ok := uc.factories[tag.Major]
	if !ok {
		log.Error("No adapter for engine major", slog.Int("major", tag.Major), slog.Any("supported", uc.SupportedMajors()))
		return nil, nil, fmt.Errorf("%w: %s (supported majors: %v)", ErrUnsupportedEngine, tag, uc.SupportedMajors())
	}

	engine, err := factory(cfg, tag, uc.logger)
	if err != nil {
		log.Error("Failed to construct engine adapter", slog.Any("error", err))
		return nil, nil, fmt.Errorf("failed to construct engine adapter for %s: %w", tag, err)
	}

	timeout := cfg.StartupProbeTimeout
	if timeout <= 0 {
		timeout = DefaultStartupProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	info, err := engine.Ping(probeCtx)
	if err != nil {
		_ = engine.Close()
		log.Error("Startup ping failed", slog.Any("error", err), slog.Duration("timeout", timeout))
		return nil, nil, fmt.Errorf("startup ping against %v failed: %w", cfg.Hosts, err)
	}

	if reported := info.Major(); reported >= 0 && reported != tag.Major {
		_ = engine.Close()
		derr := domain.Errorf(domain.KindInternal,
			"engine reports version %s but the %d.x adapter was selected", info.VersionNumber, tag.Major)
		log.Error("Engine version mismatch", slog.String("reported", info.VersionNumber))
		return nil, nil, derr
	}

	log.Info("Engine adapter ready",
		slog.String("cluster_name", info.ClusterName),
		slog.String("reported_version", info.VersionNumber),
	)
	return engine, info, nil
}
