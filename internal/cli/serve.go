package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/covenant/internal/analysis"
	"github.com/opensource-finance/covenant/internal/api"
	"github.com/opensource-finance/covenant/internal/bus"
	"github.com/opensource-finance/covenant/internal/cache"
	"github.com/opensource-finance/covenant/internal/domain"
	"github.com/opensource-finance/covenant/internal/metrics"
	"github.com/opensource-finance/covenant/internal/repository"
	"github.com/opensource-finance/covenant/internal/rules"
	"github.com/opensource-finance/covenant/internal/worker"
)

func newServeCommand(a *app) *cobra.Command {
	var noBanner bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the async worker",
		Long: `Serve starts the HTTP API. With worker.enabled (default in the pro tier)
it also consumes document.submitted events from the event bus.

Environment:
  COVENANT_TIER=pro         PostgreSQL + Redis + NATS defaults
  COVENANT_SERVER_PORT      listen port
  COVENANT_WORKER_ENABLED   run the async worker`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var banner io.Writer
			if !noBanner {
				banner = cmd.OutOrStdout()
			}
			return serve(ctx, a.cfg, a.build, banner)
		},
	}

	cmd.Flags().BoolVar(&noBanner, "no-banner", false, "do not print the startup banner")
	return cmd
}

func serve(ctx context.Context, cfg *domain.Config, build BuildInfo, banner io.Writer) error {
	slog.Info("starting covenant",
		"version", build.Version,
		"commit", build.Commit,
		"build_date", build.BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache (optional)
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	if cacheImpl != nil {
		defer cacheImpl.Close()
	}
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Build the rule set: builtin table, rule pack, stored rules
	ruleFile, err := loadRuleFile(cfg.Engine.RulesFile)
	if err != nil {
		return err
	}
	set, err := rules.FromRepository(ctx, repo, ruleFile)
	if err != nil {
		return fmt.Errorf("failed to build rule set: %w", err)
	}
	slog.Info("rule set loaded", "rules_count", set.Len(), "digest", set.Digest())

	evaluator := rules.NewEvaluator(set, cfg.Engine, cacheImpl)
	evaluator.SetCacheTTL(cfg.Cache.LocalTTL())
	evaluator.OnCacheLookup(metrics.ObserveCacheLookup)

	analyzer := analysis.New(cfg.Engine, evaluator, repo)
	analyzer.OnComplete(metrics.ObserveAnalysis)

	// Initialize async Worker
	var asyncWorker *worker.Worker
	if cfg.Worker.Enabled {
		asyncWorker = worker.NewWorker(busImpl, analyzer)
		if err := asyncWorker.Start(worker.Config{TenantIDs: cfg.Worker.TenantIDs}); err != nil {
			return fmt.Errorf("failed to start async worker: %w", err)
		}
		slog.Info("async worker started", "tenant_count", len(cfg.Worker.TenantIDs))
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, analyzer, ruleFile, build.Version)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("covenant is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)
	if banner != nil {
		printBanner(banner, cfg, build.Version)
	}

	// Wait for shutdown signal or server failure
	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case serveErr = <-errCh:
		slog.Error("server failed", "error", serveErr)
	}

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("covenant shutdown complete")
	return serveErr
}

func loadRuleFile(path string) (*rules.RuleFile, error) {
	if path == "" {
		return nil, nil
	}
	rf, err := rules.LoadRuleFile(path)
	if err != nil {
		return nil, err
	}
	slog.Info("rule pack loaded", "path", path, "rules", len(rf.Rules), "profiles", len(rf.Profiles))
	return rf, nil
}

func printBanner(w io.Writer, cfg *domain.Config, version string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  COVENANT - contract risk engine")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Version:  %s\n", version)
	fmt.Fprintf(w, "  Tier:     %s\n", cfg.Tier)
	fmt.Fprintf(w, "  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Endpoints:")
	fmt.Fprintln(w, "    POST /analyze                 - Analyze a contract")
	fmt.Fprintln(w, "    POST /segment                 - Extract clauses only")
	fmt.Fprintln(w, "    POST /documents               - Queue a contract for async analysis")
	fmt.Fprintln(w, "    GET  /analyses/{id}           - Get analysis by ID")
	fmt.Fprintln(w, "    GET  /documents/{id}          - Get document by ID")
	fmt.Fprintln(w, "    GET  /audit/{id}              - Get audit session by ID")
	fmt.Fprintln(w, "    GET  /rules                   - List risk rules")
	fmt.Fprintln(w, "    POST /rules                   - Create a custom risk rule")
	fmt.Fprintln(w, "    POST /rules/reload            - Hot-reload rules and profiles")
	fmt.Fprintln(w, "    GET  /profiles                - List contract-type weights")
	fmt.Fprintln(w, "    PUT  /profiles/{contractType} - Override contract-type weights")
	fmt.Fprintln(w, "    GET  /health                  - Health check")
	fmt.Fprintln(w, "    GET  /metrics                 - Prometheus metrics")
	fmt.Fprintln(w)
}
