// Trendd is a tech-trend assistant daemon.
//
// This binary starts the trendd HTTP server with full service
// initialization: the tool gateway, the agent set, the delegation bus,
// and the orchestrator.
//
// Configuration is loaded from a YAML file and environment variables. See
// internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	trendd
//
//	# Configure via file and environment
//	trendd -config /etc/trendd/config.yaml
//	SERVER_PORT=9090 PROVIDERS_HACKER_NEWS_URL=http://localhost:7001 trendd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/trendd/internal/agent"
	"github.com/fyrsmithlabs/trendd/internal/bus"
	"github.com/fyrsmithlabs/trendd/internal/completion"
	"github.com/fyrsmithlabs/trendd/internal/config"
	"github.com/fyrsmithlabs/trendd/internal/gateway"
	"github.com/fyrsmithlabs/trendd/internal/history"
	"github.com/fyrsmithlabs/trendd/internal/logging"
	"github.com/fyrsmithlabs/trendd/internal/memory"
	"github.com/fyrsmithlabs/trendd/internal/orchestrator"
	"github.com/fyrsmithlabs/trendd/internal/server"
	"github.com/fyrsmithlabs/trendd/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("trendd: %v", err)
	}
}

func printVersion() {
	fmt.Printf("trendd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the trendd server and blocks until the context is cancelled.
//
// Initialization order: configuration, logger, telemetry, tool gateway,
// completion backend, stores, agents, bus, orchestrator, HTTP server.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting trendd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Strings("providers", providerNames(cfg)),
	)

	telemetry.Version = version
	tel, err := telemetry.New(ctx, &cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "telemetry shutdown failed", zap.Error(err))
		}
	}()
	if tel.Degraded() {
		logger.Warn(ctx, "telemetry exporter unreachable, tracing disabled")
	}

	gw := gateway.New(cfg.Providers.Map(), logger, tel.Tracer("gateway"))

	completer, err := completion.New(&cfg.Completion)
	if err != nil {
		return fmt.Errorf("initialize completion backend: %w", err)
	}
	if completer == nil {
		logger.Warn(ctx, "no completion api key, running with heuristic fallbacks")
	}

	mem, err := memory.New(&cfg.Memory, cfg.Completion.APIKey, logger)
	if err != nil {
		return fmt.Errorf("initialize memory store: %w", err)
	}
	hist := history.NewStore(cfg.History.MaxEntries)

	classifier := agent.NewClassifier(completer, mem, logger)
	trendAnalyzer := agent.NewTrendAnalyzer(gw, completer, logger, agent.TrendOptions{
		DefaultLimit: cfg.Agents.TrendLimit,
	})
	repoAnalyst := agent.NewRepoAnalyst(gw, completer, logger, agent.RepoOptions{
		MaxRepos:    cfg.Agents.MaxRepos,
		Concurrency: cfg.Agents.RepoConcurrency,
	})

	b := bus.New(logger, cfg.Agents.MaxDelegationDepth)
	b.Register(classifier)
	b.Register(trendAnalyzer)
	b.Register(repoAnalyst)

	orch := orchestrator.New(classifier, b, hist, mem, logger, tel.Tracer("orchestrator"))

	srv, err := server.New(orch, b, gw, hist, logger, &cfg.Server)
	if err != nil {
		return fmt.Errorf("initialize http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(ctx, "shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	logger.Info(shutdownCtx, "shutdown complete")
	return nil
}

// providerNames lists the configured tool providers for the startup log.
func providerNames(cfg *config.Config) []string {
	m := cfg.Providers.Map()
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	return names
}
