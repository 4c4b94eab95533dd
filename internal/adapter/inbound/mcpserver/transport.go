package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"
)

// Transport names accepted by --transport.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
	TransportHTTP  = "http"
)

// Transports lists the supported transport names.
var Transports = []string{TransportStdio, TransportSSE, TransportHTTP}

// TransportOptions configures Run.
type TransportOptions struct {
	Kind            string
	ListenAddr      string
	BaseURL         string
	ShutdownTimeout time.Duration
	Stdin           io.Reader
	Stdout          io.Writer
}

// httpTransport is implemented by the mcp-go SSE and streamable HTTP servers.
type httpTransport interface {
	Start(addr string) error
	Shutdown(ctx context.Context) error
}

// Run serves s on the selected transport until ctx is cancelled or the
// transport fails.
func Run(ctx context.Context, s *server.MCPServer, opts TransportOptions, logger *slog.Logger) error {
	log := logger.With("component", "mcp_transport", slog.String("transport", opts.Kind))

	switch opts.Kind {
	case TransportStdio:
		log.Info("Starting in STDIO mode")
		err := server.NewStdioServer(s).Listen(ctx, opts.Stdin, opts.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
			return fmt.Errorf("stdio server: %w", err)
		}
		return nil

	case TransportSSE:
		baseURL := opts.BaseURL
		if baseURL == "" {
			baseURL = "http://" + opts.ListenAddr
		}
		log.Info("Starting in SSE mode", slog.String("address", opts.ListenAddr), slog.String("base_url", baseURL))
		return serveHTTP(ctx, server.NewSSEServer(s, server.WithBaseURL(baseURL)), opts, log)

	case TransportHTTP:
		log.Info("Starting in streamable HTTP mode", slog.String("address", opts.ListenAddr))
		return serveHTTP(ctx, server.NewStreamableHTTPServer(s), opts, log)

	default:
		return fmt.Errorf("unknown transport %q (want one of %v)", opts.Kind, Transports)
	}
}

func serveHTTP(ctx context.Context, t httpTransport, opts TransportOptions, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- t.Start(opts.ListenAddr)
	}()

	select {
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("mcp server on %s: %w", opts.ListenAddr, err)
	case <-ctx.Done():
	}

	log.Info("Shutting down MCP server")
	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := t.Shutdown(shutdownCtx); err != nil {
		log.Error("MCP server graceful shutdown failed", slog.Any("error", err))
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
