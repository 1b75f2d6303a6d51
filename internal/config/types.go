package config

import "time"

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

type GRPCConfig struct {
	EnableReflection      bool `mapstructure:"enable_reflection"`
	MaxReceiveMessageSize int  `mapstructure:"max_receive_message_size"`
	MaxSendMessageSize    int  `mapstructure:"max_send_message_size"`
}

type DatabaseConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	Name         string        `mapstructure:"name"`
	SSLMode      string        `mapstructure:"sslmode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	SlowQuery    time.Duration `mapstructure:"slow_query"`
}

// AuthConfig holds the session and credential settings read by the auth core.
type AuthConfig struct {
	SessionTimeout    time.Duration `mapstructure:"session_timeout"`
	TokenLength       int           `mapstructure:"token_length"`
	TokenAlphabet     string        `mapstructure:"token_alphabet"`
	BcryptCost        int           `mapstructure:"bcrypt_cost"`
	MinUsernameLength int           `mapstructure:"min_username_length"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`

	// Initial admin account created at startup when both are set.
	BootstrapAdminUsername string `mapstructure:"bootstrap_admin_username"`
	BootstrapAdminPassword string `mapstructure:"bootstrap_admin_password"`
}

const (
	LockoutBackendMemory = "memory"
	LockoutBackendRedis  = "redis"
)

type LockoutConfig struct {
	Backend   string        `mapstructure:"backend"`
	Threshold int           `mapstructure:"threshold"`
	Window    time.Duration `mapstructure:"window"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type AppConfig struct {
	Server   ServerConfig   `mapstructure:"server"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Lockout  LockoutConfig  `mapstructure:"lockout"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}
