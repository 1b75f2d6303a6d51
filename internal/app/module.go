package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/rubric-eval/internal/auth"
	"github.com/elskow/rubric-eval/internal/database"
	"github.com/elskow/rubric-eval/internal/migration"
	"github.com/elskow/rubric-eval/internal/server"
)

// Module combines all application modules. The *zap.Logger is supplied by
// the caller. Hook order matters: the schema is migrated before the auth
// module bootstraps its admin account.
func Module() fx.Option {
	return fx.Options(
		// Configuration
		fx.Provide(server.LoadConfig),

		// Metrics
		fx.Provide(
			server.NewRegistry,
			server.NewRequestMetrics,
			server.NewMetricsServer,
		),

		// Storage
		database.Module(),
		migration.Module(),

		// Auth Module
		auth.NewModule(),

		// Server
		fx.Provide(server.NewServer),

		// Start the server
		fx.Invoke(registerHooks),
	)
}

func registerHooks(
	lifecycle fx.Lifecycle,
	srv *server.Server,
	metrics *server.MetricsServer,
	log *zap.Logger,
) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					log.Error("failed to start server", zap.Error(err))
				}
			}()
			go func() {
				if err := metrics.Start(); err != nil {
					log.Error("failed to start metrics server", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down server...")
			srv.Stop()
			return metrics.Stop(ctx)
		},
	})
}
