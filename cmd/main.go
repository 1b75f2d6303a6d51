package main

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/elskow/rubric-eval/internal/app"
	"github.com/elskow/rubric-eval/internal/server"
)

const (
	// Migrations and the Redis ping both run inside OnStart.
	startTimeout = 30 * time.Second
	// Long enough for in-flight logins to finish their bcrypt work.
	stopTimeout = 15 * time.Second
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = server.EnvDevelopment
		_ = os.Setenv("APP_ENV", env)
	}

	logger, err := server.NewLogger(env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	fx.New(
		fx.Supply(logger),
		app.Module(),
		fx.StartTimeout(startTimeout),
		fx.StopTimeout(stopTimeout),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			fxLog := &fxevent.ZapLogger{Logger: log.Named("fx")}
			fxLog.UseLogLevel(zap.DebugLevel)
			return fxLog
		}),
	).Run()
}
