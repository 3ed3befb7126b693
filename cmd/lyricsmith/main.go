package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raaihank/lyricsmith/internal/catalog"
	"github.com/raaihank/lyricsmith/internal/config"
	"github.com/raaihank/lyricsmith/internal/logger"
	"github.com/raaihank/lyricsmith/internal/negotiate"
	"github.com/raaihank/lyricsmith/internal/persist"
	"github.com/raaihank/lyricsmith/internal/rulestore"
	"github.com/raaihank/lyricsmith/internal/server"
	"go.uber.org/zap"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("lyricsmith %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck {
		performHealthCheck()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting lyricsmith",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	deps, cleanup := buildDeps(cfg, log)
	defer cleanup()

	srv := server.New(cfg, log, deps)

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// buildDeps wires the stores. Redis and Postgres are both optional: a failed
// connection degrades to in-memory behavior rather than aborting startup.
func buildDeps(cfg *config.Config, log *logger.Logger) (server.Deps, func()) {
	deps := server.Deps{
		Declines: negotiate.NewMemoryDeclineStore(),
		Catalog:  catalog.NewClient(&cfg.Catalog, log.WithComponent("catalog").Logger),
	}
	var closers []func()

	ruleStore := rulestore.New(log.WithComponent("rulestore").Logger)
	deps.Rules = ruleStore

	if cfg.Database.DatabaseURL != "" {
		pg, err := rulestore.NewPostgresStore(&cfg.Database, log.WithComponent("rulestore").Logger)
		if err != nil {
			log.Warn("Rule persistence unavailable, running in-memory", zap.Error(err))
		} else {
			closers = append(closers, func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := pg.Save(ctx, "default", ruleStore.Snapshot()); err != nil {
					log.Warn("Failed to persist rule state on shutdown", zap.Error(err))
				}
				pg.Close()
			})

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			state, err := pg.Load(ctx, "default")
			cancel()
			if err != nil {
				log.Warn("Failed to load rule state", zap.Error(err))
			} else {
				ruleStore.LoadState(state)
				log.Info("Rule state loaded", zap.Int("rules", ruleStore.RuleCount()))
			}
		}
	}

	if cfg.Redis.RedisURL != "" {
		client, err := persist.NewClient(&cfg.Redis, log.WithComponent("persist").Logger)
		if err != nil {
			log.Warn("Redis unavailable, declines and autosave are not durable", zap.Error(err))
		} else {
			closers = append(closers, func() { client.Close() })
			deps.Declines = persist.NewRedisDeclineStore(client)
			deps.Autosaves = persist.NewRedisAutosaveStore(client)
			deps.Settings = persist.NewRedisSettingsStore(client)
		}
	}

	return deps, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}

// performHealthCheck performs a health check against the running server
func performHealthCheck() {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get("http://localhost:8080/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
