package cli

import (
	"context"
	nethttp "net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/esglens/esglens/internal/bootstrap"
	"github.com/esglens/esglens/internal/config"
	"github.com/esglens/esglens/internal/infrastructure/monitoring/logging"
	httpiface "github.com/esglens/esglens/internal/interfaces/http"
	"github.com/esglens/esglens/internal/interfaces/http/handlers"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the results server",
		Long: "Starts the HTTP server exposing run submission, progress, results,\n" +
			"health probes and metrics. Runs until SIGINT or SIGTERM, then drains\n" +
			"in-flight requests.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx := cliContextFrom(cmd)
			cfg := cliCtx.Config

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			comps, err := bootstrap.Build(ctx, cfg, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer comps.Close()

			// File-based configs are hot-reloaded: log level and matching
			// thresholds apply to subsequent runs without a restart.
			if cliCtx.ConfigPath != "" {
				logger := cliCtx.Logger
				config.Watch(cliCtx.ConfigPath, func(next *config.Config) {
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
				Version:     Version,
				Checkers:    checkers,
				Metrics:     metricsHandler,
				MetricsPath: cfg.Metrics.Path,
				Mode:        cfg.Server.Mode,
				Logger:      cliCtx.Logger,
			})
			srv := httpiface.NewServer(cfg.Server, router, cliCtx.Logger)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			if err := srv.Stop(context.Background()); err != nil {
				return err
			}
			return <-errCh
		},
	}
}
