package cli

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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tilsley/dirpack/apps/server/internal/download"
	"github.com/tilsley/dirpack/apps/server/internal/download/handler"
	"github.com/tilsley/dirpack/apps/server/internal/platform/config"
	"github.com/tilsley/dirpack/apps/server/internal/platform/telemetry"
	"github.com/tilsley/dirpack/apps/server/internal/platform/validation"
	"github.com/tilsley/dirpack/schemas"
)

// NewServeCmd returns the command that runs the HTTP server.
func NewServeCmd(log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP download server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// --- Observability ---

	tel, err := telemetry.New(ctx, telemetry.Options{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.Endpoint,
	})
	if err != nil {
		return fmt.Errorf("telemetry init: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "error", err)
		}
	}()

	// --- Adapters ---

	if cfg.GitHub.Token == "" {
		log.Warn("GITHUB_TOKEN not set, every download will fail as misconfigured")
	}
	remote, err := newRemote(cfg)
	if err != nil {
		return err
	}
	jobs, closeJobs, err := openJobStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeJobs()

	// --- Service + HTTP ---

	svc := download.NewService(download.Config{
		ServerToken:  cfg.GitHub.Token,
		WorkDir:      cfg.Download.WorkDir,
		AllowPartial: cfg.Download.AllowPartial,
	}, newFetcher(cfg, remote, log, nil), jobs, log)

	router := gin.New()
	validator, err := validation.New(schemas.OpenAPISpec)
	if err != nil {
		return fmt.Errorf("openapi validation middleware init: %w", err)
	}
	router.Use(gin.Recovery(), otelgin.Middleware(cfg.Telemetry.ServiceName), validator)
	handler.RegisterRoutes(router, svc, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting dirpack", "port", cfg.Port, "history", cfg.History.Backend(),
			"concurrency", cfg.Fetch.Concurrency, "allowPartial", cfg.Download.AllowPartial)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
