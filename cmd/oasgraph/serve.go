package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hanpama/oasgraph/internal/config"
	"github.com/hanpama/oasgraph/internal/eventbus"
	"github.com/hanpama/oasgraph/internal/introspection"
	"github.com/hanpama/oasgraph/internal/otel"
	"github.com/hanpama/oasgraph/internal/restrt"
	"github.com/hanpama/oasgraph/internal/resttp"
	"github.com/hanpama/oasgraph/internal/server"
)

var serveRunner = runServe

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the GraphQL HTTP server",
		Example: `  oasgraph serve --document ./petstore.yaml --addr :8080
  oasgraph serve -d https://api.example.com/openapi.json --forward-header Authorization`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			return serveRunner(cmd.Context(), cfg)
		},
	}
	flags := cmd.Flags()
	flags.String("addr", "", "HTTP listen address (default :8080)")
	flags.Bool("pretty", false, "Pretty-print JSON responses")
	flags.Bool("introspection", true, "Answer __schema and __type queries")
	flags.Duration("timeout", 0, "Per-request timeout (default 10s)")
	flags.StringSlice("forward-header", nil, "Inbound header forwarded to the API. Repeatable")
	flags.String("otel-endpoint", "", "OTLP collector endpoint")
	return cmd
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.ParsedLogLevel()}))
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	eventbus.Use(eventbus.New())
	shutdownOtel, err := otel.Setup(cfg.OtelEndpoint, cfg.OtelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdownOtel(context.Background()) }()

	transport := resttp.New(
		resttp.WithTimeout(cfg.BackendTimeout),
		resttp.WithRetry(cfg.RetryAttempts, cfg.RetryDelay),
		resttp.WithForwardHeaders(cfg.ForwardHeaders...),
		resttp.WithLogger(logger),
	)
	defer transport.Close()

	exe, err := buildSchema(ctx, cfg, transport.Backend(), logger)
	if err != nil {
		return err
	}

	sopts := []server.Option{
		server.WithTimeout(cfg.RequestTimeout),
		server.WithMaxBodyBytes(cfg.MaxBodyBytes),
		server.WithLogger(logger),
	}
	if cfg.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if len(cfg.CORSOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(cfg.CORSOrigins...))
	}
	if len(cfg.ForwardHeaders) > 0 {
		sopts = append(sopts, server.WithForwardHeaders(cfg.ForwardHeaders...))
	}
	runtime, sch := restrt.NewRuntime(exe), exe.Schema
	if cfg.Introspection {
		wrapped := introspection.Wrap(runtime, sch)
		runtime, sch = wrapped.Runtime, wrapped.Schema
	}
	h, err := server.New(runtime, sch, sopts...)
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", h)
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		logger.Info("graphql server listening", "addr", cfg.ListenAddr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
