// Command esglensd is the standalone results server daemon. Unlike
// "esglens serve" it has no CLI surface: one flag for the config file,
// JSON logs, and a clean shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/esglens/esglens/internal/bootstrap"
	"github.com/esglens/esglens/internal/config"
	"github.com/esglens/esglens/internal/infrastructure/monitoring/logging"
	httpiface "github.com/esglens/esglens/internal/interfaces/http"
	"github.com/esglens/esglens/internal/interfaces/http/handlers"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "esglensd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "config file path (default: environment only)")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return err
	}
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	// File-based configs are hot-reloaded: log level and matching thresholds
	// apply to subsequent runs without a restart.
	if *configPath != "" {
		config.Watch(*configPath, func(next *config.Config) {
			logging.SetLevel(logger, next.Log.Level)
			comps.Reload(next)
			logger.Info("configuration reloaded",
				logging.String("log_level", next.Log.Level),
				logging.Int("top_k", next.Matcher.TopK),
				logging.Float64("min_score", next.Matcher.MinScore),
			)
		})
	}

	var metricsHandler nethttp.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = comps.Metrics.Handler()
	}
	checkers := make([]handlers.HealthChecker, 0, len(comps.Checkers()))
	for _, c := range comps.Checkers() {
		checkers = append(checkers, c)
	}

	router := httpiface.NewRouter(httpiface.RouterConfig{
		Factory:     func() handlers.Pipeline { return comps.NewRunner() },
		Version:     version,
		Checkers:    checkers,
		Metrics:     metricsHandler,
		MetricsPath: cfg.Metrics.Path,
		Mode:        cfg.Server.Mode,
		Logger:      logger,
	})
	srv := httpiface.NewServer(cfg.Server, router, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	if err := srv.Stop(context.Background()); err != nil {
		return err
	}
	return <-errCh
}
