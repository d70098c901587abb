package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the ledger service
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Database configuration (local record/grant mirror)
	Database DatabaseConfig `mapstructure:"database"`

	// Ledger node configuration
	Ledger LedgerConfig `mapstructure:"ledger"`

	// Zero-knowledge prover/verifier configuration
	ZKP ZKPConfig `mapstructure:"zkp"`

	// Encryption configuration
	Encryption EncryptionConfig `mapstructure:"encryption"`

	// Retry policy for transient ledger failures
	Retry RetryConfig `mapstructure:"retry"`

	// Circuit breaker configuration
	Breaker BreakerConfig `mapstructure:"breaker"`

	// JWT configuration for the HTTP facade
	JWT JWTConfig `mapstructure:"jwt"`

	// Monitoring configuration
	Monitoring MonitoringConfig `mapstructure:"monitoring"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// LedgerConfig holds ledger node access configuration
type LedgerConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	RequestTimeout int    `mapstructure:"request_timeout"` // seconds, per RPC
	PollInterval   int    `mapstructure:"poll_interval"`   // seconds, status refresh cadence
}

// ZKPConfig holds prover/verifier boundary configuration
type ZKPConfig struct {
	ProverEndpoint   string `mapstructure:"prover_endpoint"`
	VerifierEndpoint string `mapstructure:"verifier_endpoint"`
	RequestTimeout   int    `mapstructure:"request_timeout"` // seconds
	CacheSize        int    `mapstructure:"cache_size"`
}

// EncryptionConfig holds encryption configuration
type EncryptionConfig struct {
	MasterKey string    `mapstructure:"master_key"`
	KDF       KDFConfig `mapstructure:"kdf"`
}

// KDFConfig holds per-subject key derivation parameters
type KDFConfig struct {
	Salt       string `mapstructure:"salt"`
	Iterations int    `mapstructure:"iterations"`
}

// RetryConfig holds exponential backoff parameters. Kept as a struct rather
// than constants so deterministic-clock tests can exercise the schedule.
type RetryConfig struct {
	MaxAttempts int     `mapstructure:"max_attempts"`
	BaseDelayMS int     `mapstructure:"base_delay_ms"`
	Multiplier  float64 `mapstructure:"multiplier"`
	MaxDelayMS  int     `mapstructure:"max_delay_ms"`
}

// BreakerConfig holds circuit breaker parameters
type BreakerConfig struct {
	FailureThreshold int `mapstructure:"failure_threshold"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SecretKey      string `mapstructure:"secret_key"`
	AccessTokenTTL int    `mapstructure:"access_token_ttl"`
	Issuer         string `mapstructure:"issuer"`
	Audience       string `mapstructure:"audience"`
}

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/suoke/ledger")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideWithEnv(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.idle_timeout", 120)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "suoke_ledger")
	viper.SetDefault("database.user", "suoke")
	viper.SetDefault("database.ssl_mode", "require")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	// Ledger defaults
	viper.SetDefault("ledger.endpoint", "http://localhost:8545")
	viper.SetDefault("ledger.request_timeout", 30)
	viper.SetDefault("ledger.poll_interval", 15)

	// ZKP defaults
	viper.SetDefault("zkp.request_timeout", 60)
	viper.SetDefault("zkp.cache_size", 256)

	// KDF defaults
	viper.SetDefault("encryption.kdf.iterations", 100000)

	// Retry defaults
	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.base_delay_ms", 500)
	viper.SetDefault("retry.multiplier", 2.0)
	viper.SetDefault("retry.max_delay_ms", 10000)

	// Breaker defaults
	viper.SetDefault("breaker.failure_threshold", 3)

	// JWT defaults
	viper.SetDefault("jwt.access_token_ttl", 3600)
	viper.SetDefault("jwt.issuer", "suoke-ledger-service")
	viper.SetDefault("jwt.audience", "suoke-clients")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_path", "/metrics")

	// Logging defaults
	viper.SetDefault("log_level", "info")
}

// overrideWithEnv overrides configuration with environment variables
func overrideWithEnv(config *Config) {
	if endpoint := os.Getenv("LEDGER_ENDPOINT"); endpoint != "" {
		config.Ledger.Endpoint = endpoint
	}

	if masterKey := os.Getenv("ENCRYPTION_MASTER_KEY"); masterKey != "" {
		config.Encryption.MasterKey = masterKey
	}

	if jwtSecret := os.Getenv("JWT_SECRET_KEY"); jwtSecret != "" {
		config.JWT.SecretKey = jwtSecret
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.LogLevel = logLevel
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Encryption.MasterKey == "" {
		return fmt.Errorf("encryption master key is required")
	}

	if config.Encryption.KDF.Iterations <= 0 {
		return fmt.Errorf("invalid KDF iteration count: %d", config.Encryption.KDF.Iterations)
	}

	if config.Ledger.Endpoint == "" {
		return fmt.Errorf("ledger endpoint is required")
	}

	if config.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("invalid retry max attempts: %d", config.Retry.MaxAttempts)
	}

	if config.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("invalid breaker failure threshold: %d", config.Breaker.FailureThreshold)
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	return nil
}
