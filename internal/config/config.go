// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MaxAccessTTL is the hard ceiling on access token lifetime. Issued tokens are
// clamped to this and validation rejects any token whose lifetime exceeds it.
const MaxAccessTTL = 2 * time.Hour

// MaxLinkTTL is the hard ceiling on magic link lifetime.
const MaxLinkTTL = 30 * time.Minute

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "maritime-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "maritime-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "30m"). Clamped to 2h at issue time.
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// MaxSessionsPerUser bounds concurrent sessions per user; creating beyond it
	// evicts the session with the oldest activity. Default 3.
	MaxSessionsPerUser int `mapstructure:"MAX_SESSIONS_PER_USER"`
	// LockoutThreshold is the failed-attempt count that triggers a lockout. Default 5.
	LockoutThreshold int `mapstructure:"LOCKOUT_THRESHOLD"`
	// MagicLinkTTL is the magic link lifetime (e.g. "30m"). Clamped to 30m.
	MagicLinkTTL string `mapstructure:"MAGIC_LINK_TTL"`
	// MagicLinkBaseURL is the public URL the emailed link points at (e.g. https://app.example.com/magic-login).
	MagicLinkBaseURL string `mapstructure:"MAGIC_LINK_BASE_URL"`
	// RevocationRetention is how long revoked jtis are kept after the underlying
	// token would have expired (e.g. "4h"). Never allowed below MaxAccessTTL.
	RevocationRetention string `mapstructure:"REVOCATION_RETENTION"`
	// CleanupInterval is how often the worker runs store cleanup (e.g. "10m").
	CleanupInterval string `mapstructure:"CLEANUP_INTERVAL"`
	// StoreTimeout is the per-call deadline for store operations (e.g. "3s").
	StoreTimeout string `mapstructure:"STORE_TIMEOUT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// OTLPEndpoint is the OTLP gRPC endpoint for traces/metrics/logs (e.g. http://localhost:4317). Empty disables export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`

	// Security-event pipeline (optional). When Kafka brokers are set, the server
	// emits security events to Kafka and the worker ships them to Loki.
	// SecurityKafkaBrokers is a comma-separated broker list (e.g. "localhost:9092").
	SecurityKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// SecurityKafkaTopic is the Kafka topic for security events (default maritime-security-events).
	SecurityKafkaTopic string `mapstructure:"SECURITY_KAFKA_TOPIC"`

	// Worker-only: Loki URL to push security events (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the security-event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ISSUER", "maritime-auth")
	v.SetDefault("JWT_AUDIENCE", "maritime-api")
	v.SetDefault("JWT_ACCESS_TTL", "30m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("MAX_SESSIONS_PER_USER", 3)
	v.SetDefault("LOCKOUT_THRESHOLD", 5)
	v.SetDefault("MAGIC_LINK_TTL", "30m")
	v.SetDefault("MAGIC_LINK_BASE_URL", "")
	v.SetDefault("REVOCATION_RETENTION", "4h")
	v.SetDefault("CLEANUP_INTERVAL", "10m")
	v.SetDefault("STORE_TIMEOUT", "3s")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("SECURITY_KAFKA_TOPIC", "maritime-security-events")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "maritime-security-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.MaxSessionsPerUser < 1 {
		return nil, errors.New("config: MAX_SESSIONS_PER_USER must be at least 1")
	}
	if cfg.LockoutThreshold < 1 {
		return nil, errors.New("config: LOCKOUT_THRESHOLD must be at least 1")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 30m if unset or
// invalid, and never more than MaxAccessTTL.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	if d > MaxAccessTTL {
		return MaxAccessTTL
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// LinkTTL parses MagicLinkTTL as a time.Duration. Returns 30m if unset,
// invalid, or above the MaxLinkTTL ceiling.
func (c *Config) LinkTTL() time.Duration {
	d, err := time.ParseDuration(c.MagicLinkTTL)
	if err != nil || d <= 0 || d > MaxLinkTTL {
		return MaxLinkTTL
	}
	return d
}

// Retention parses RevocationRetention. Returns MaxAccessTTL if unset, invalid,
// or shorter than the maximum token lifetime (retention must never be shorter).
func (c *Config) Retention() time.Duration {
	d, err := time.ParseDuration(c.RevocationRetention)
	if err != nil || d < MaxAccessTTL {
		return MaxAccessTTL
	}
	return d
}

// CleanupEvery parses CleanupInterval. Returns 10m if unset or invalid.
func (c *Config) CleanupEvery() time.Duration {
	d, err := time.ParseDuration(c.CleanupInterval)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// StoreCallTimeout parses StoreTimeout. Returns 3s if unset or invalid.
func (c *Config) StoreCallTimeout() time.Duration {
	d, err := time.ParseDuration(c.StoreTimeout)
	if err != nil || d <= 0 {
		return 3 * time.Second
	}
	return d
}

// SecurityKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the security-event pipeline is enabled (non-empty list) and to create the producer.
func (c *Config) SecurityKafkaBrokersList() []string {
	if c == nil || c.SecurityKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.SecurityKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
