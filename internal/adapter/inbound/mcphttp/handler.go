// Package mcphttp serves the operator-facing admin endpoints next to the MCP
// transport: liveness against the engine, the tool catalog and the resolved
// engine release.
package mcphttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/silbaram/elasticsearch-mcp-server/internal/domain"
	"github.com/silbaram/elasticsearch-mcp-server/internal/usecase"
	"github.com/silbaram/elasticsearch-mcp-server/pkg/shared/mcpjsonrpc"
)

const defaultHealthTimeout = 2 * time.Second

// Handlers struct holds dependencies for the HTTP handlers.
type Handlers struct {
	serveTools    *usecase.ServeToolsUseCase
	engine        usecase.Engine
	info          *domain.EngineInfo
	healthTimeout time.Duration
	logger        *slog.Logger
}

// NewHandlers creates a new Handlers struct. info is the startup ping result
// and may be nil.
func NewHandlers(
	serveTools *usecase.ServeToolsUseCase,
	engine usecase.Engine,
	info *domain.EngineInfo,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		serveTools:    serveTools,
		engine:        engine,
		info:          info,
		healthTimeout: defaultHealthTimeout,
		logger:        logger.With("component", "mcphttp_handler"),
	}
}

// WithHealthTimeout overrides how long /healthz waits for the engine.
func (h *Handlers) WithHealthTimeout(d time.Duration) *Handlers {
	if d > 0 {
		h.healthTimeout = d
	}
	return h
}

// RegisterAdminRoutes sets up the HTTP routes for admin endpoints.
func (h *Handlers) RegisterAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("GET /admin/tools", h.handleListTools)
	mux.HandleFunc("GET /admin/engine", h.handleEngine)
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status        string             `json:"status"`
	EngineVersion string             `json:"engine_version"`
	Engine        *domain.EngineInfo `json:"engine,omitempty"`
	Error         *mcpjsonrpc.Error  `json:"error,omitempty"`
}

// handleHealth implements GET /healthz. It pings the engine so a broken
// connection shows up as 503.
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.healthTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", EngineVersion: h.engine.Version().String()}
	info, err := h.engine.Ping(ctx)
	if err != nil {
		derr := domain.AsError(err)
		h.logger.Warn("Health check failed", slog.String("kind", string(derr.Kind)), slog.String("message", derr.Message))
		resp.Status = "unavailable"
		resp.Error = mcpjsonrpc.NewError(string(derr.Kind), derr.Message)
		h.writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Engine = info
	h.writeJSON(w, http.StatusOK, resp)
}

// ToolSummary is one entry of GET /admin/tools.
type ToolSummary struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	ReadOnly     bool            `json:"read_only"`
	InputSchema  json.RawMessage `json:"input_schema"`
	OutputSchema json.RawMessage `json:"output_schema"`
}

// handleListTools implements GET /admin/tools
func (h *Handlers) handleListTools(w http.ResponseWriter, r *http.Request) {
	tools, err := h.serveTools.Execute(r.Context())
	if err != nil {
		http.Error(w, "Failed to list tools", http.StatusInternalServerError)
		return
	}

	out := make([]ToolSummary, 0, len(tools))
	for _, t := range tools {
		summary, err := summarize(t)
		if err != nil {
			h.logger.Error("Failed to render tool schema", slog.String("tool", t.Name), slog.Any("error", err))
			http.Error(w, "Failed to render tool schema", http.StatusInternalServerError)
			return
		}
		out = append(out, summary)
	}
	h.writeJSON(w, http.StatusOK, out)
}

func summarize(t domain.ToolDescriptor) (ToolSummary, error) {
	in, err := domain.MarshalSchema(t.InputSchema)
	if err != nil {
		return ToolSummary{}, err
	}
	res, err := domain.MarshalSchema(t.OutputSchema)
	if err != nil {
		return ToolSummary{}, err
	}
	return ToolSummary{Name: t.Name, Description: t.Description, ReadOnly: t.ReadOnly, InputSchema: in, OutputSchema: res}, nil
}

// EngineResponse is the body of GET /admin/engine.
type EngineResponse struct {
	Adapter string             `json:"adapter"`
	Major   int                `json:"major"`
	Engine  *domain.EngineInfo `json:"engine,omitempty"`
}

func (h *Handlers) handleEngine(w http.ResponseWriter, _ *http.Request) {
	tag := h.engine.Version()
	h.writeJSON(w, http.StatusOK, EngineResponse{Adapter: tag.String(), Major: tag.Major, Engine: h.info})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to write admin response", slog.Any("error", err))
	}
}
