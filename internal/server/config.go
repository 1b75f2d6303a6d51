package server

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/elskow/rubric-eval/internal/config"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

const envPrefix = "RUBRIC"

func LoadConfig() (*config.AppConfig, error) {
	return loadConfig("./config/server")
}

func loadConfig(paths ...string) (*config.AppConfig, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = EnvDevelopment
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	// RUBRIC_AUTH_SESSION_TIMEOUT overrides auth.session_timeout, and so on.
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config config.AppConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Load environment-specific configurations
	if envSettings := v.GetStringMap(fmt.Sprintf("grpc.%s", env)); len(envSettings) > 0 {
		if err := v.UnmarshalKey(fmt.Sprintf("grpc.%s", env), &config.GRPC); err != nil {
			return nil, fmt.Errorf("error unmarshaling env config: %w", err)
		}
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "50051")

	v.SetDefault("grpc.enable_reflection", false)
	v.SetDefault("grpc.max_receive_message_size", 4<<20)
	v.SetDefault("grpc.max_send_message_size", 4<<20)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "rubric_eval")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.slow_query", time.Second)

	v.SetDefault("auth.session_timeout", time.Hour)
	v.SetDefault("auth.token_length", 32)
	v.SetDefault("auth.token_alphabet", "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789")
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.min_username_length", 3)
	v.SetDefault("auth.sweep_interval", 10*time.Minute)

	v.SetDefault("lockout.backend", config.LockoutBackendMemory)
	v.SetDefault("lockout.threshold", 3)
	v.SetDefault("lockout.window", 5*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("metrics.addr", "0.0.0.0:9090")
}

func validate(cfg *config.AppConfig) error {
	// Durations need a unit ("1h"); a bare number is read as nanoseconds.
	if cfg.Auth.SessionTimeout < time.Second {
		return fmt.Errorf("auth.session_timeout must be at least 1s, got %s", cfg.Auth.SessionTimeout)
	}
	if cfg.Auth.SweepInterval != 0 && cfg.Auth.SweepInterval < time.Second {
		return fmt.Errorf("auth.sweep_interval must be 0 or at least 1s, got %s", cfg.Auth.SweepInterval)
	}
	if cfg.Auth.TokenLength < 32 {
		return fmt.Errorf("auth.token_length must be at least 32, got %d", cfg.Auth.TokenLength)
	}
	if len(cfg.Auth.TokenAlphabet) < 2 || len(cfg.Auth.TokenAlphabet) > 256 {
		return fmt.Errorf("auth.token_alphabet must hold between 2 and 256 characters")
	}
	if cfg.Auth.MinUsernameLength < 1 {
		return fmt.Errorf("auth.min_username_length must be at least 1")
	}
	if cfg.Lockout.Threshold < 1 {
		return fmt.Errorf("lockout.threshold must be at least 1")
	}
	if cfg.Lockout.Window < time.Second {
		return fmt.Errorf("lockout.window must be at least 1s, got %s", cfg.Lockout.Window)
	}
	switch cfg.Lockout.Backend {
	case config.LockoutBackendMemory, config.LockoutBackendRedis:
	default:
		return fmt.Errorf("unknown lockout.backend %q", cfg.Lockout.Backend)
	}
	return nil
}
