package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elskow/rubric-eval/internal/config"
)

// NewModule returns the auth module options
func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			// Provide stores
			fx.Annotate(
				func(db *gorm.DB) CredentialStore {
					return NewCredentialStore(db)
				},
			),
			fx.Annotate(
				func(db *gorm.DB, config *config.AppConfig) SessionStore {
					return NewSessionStore(db, config.Auth.SessionTimeout)
				},
			),
			// Provide lockout guard
			newGuard,
			// Provide primitives
			func(config *config.AppConfig) (*Hasher, error) {
				return NewHasher(config.Auth.BcryptCost)
			},
			func(config *config.AppConfig) (*TokenGenerator, error) {
				return NewTokenGenerator(config.Auth.TokenLength, config.Auth.TokenAlphabet)
			},
			func(reg *prometheus.Registry) (*MetricsCollector, error) {
				return NewMetricsCollector(reg)
			},
			// Provide service
			fx.Annotate(
				func(config *config.AppConfig, log *zap.Logger, users CredentialStore, sessions SessionStore,
					guard Guard, hasher *Hasher, tokens *TokenGenerator, metrics *MetricsCollector) *Service {
					return NewService(&config.Auth, log, users, sessions, guard, hasher, tokens, metrics)
				},
			),
			// Provide gate
			func(svc *Service) *Gate {
				return NewGate(svc)
			},
			// Provide handler
			fx.Annotate(
				func(svc *Service, log *zap.Logger) *Handler {
					return NewHandler(svc, log)
				},
			),
			// Provide middleware
			fx.Annotate(
				func(gate *Gate, log *zap.Logger) *AuthMiddleware {
					return NewAuthMiddleware(gate, log)
				},
			),
		),
		fx.Invoke(registerHooks),
	)
}

func newGuard(lifecycle fx.Lifecycle, cfg *config.AppConfig, log *zap.Logger) (Guard, error) {
	lc := cfg.Lockout
	if lc.Backend != config.LockoutBackendRedis {
		log.Info("using in-memory lockout guard, failure counters reset on restart")
		return NewMemoryGuard(lc.Threshold, lc.Window), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing redis client")
			return client.Close()
		},
	})

	log.Info("using redis lockout guard", zap.String("addr", cfg.Redis.Addr))
	return NewRedisGuard(client, lc.Threshold, lc.Window, log), nil
}

func registerHooks(
	lifecycle fx.Lifecycle,
	config *config.AppConfig,
	svc *Service,
	log *zap.Logger,
) {
	sweepCtx, cancelSweep := context.WithCancel(context.Background())

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := svc.EnsureAdmin(ctx, config.Auth.BootstrapAdminUsername, config.Auth.BootstrapAdminPassword); err != nil {
				return fmt.Errorf("failed to bootstrap admin account: %w", err)
			}
			if config.Auth.SweepInterval > 0 {
				go runSweeper(sweepCtx, svc, config.Auth.SweepInterval, log)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancelSweep()
			return nil
		},
	})
}

// runSweeper terminates expired sessions in the background. Lazy expiry on
// read stays authoritative; this only keeps listings and the table tidy.
func runSweeper(ctx context.Context, svc *Service, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			log.Debug("login activity", zap.Object("logins", svc.Metrics()))

			n, err := svc.SweepExpiredSessions(ctx)
			if err != nil {
				log.Warn("session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("session sweep complete", zap.Int64("ended", n))
			}
		case <-ctx.Done():
			return
		}
	}
}
