package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/creditmeter/pkg/observability"
)

const envPrefix = "CREDITMETER_"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Stripe        StripeConfig
	Auth          AuthConfig
	Plans         PlansConfig
	RateLimit     RateLimitConfig
	Observability ObservabilityConfig
	Export        ExportConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// ClientURL is the frontend origin used for checkout and portal redirects
	ClientURL   string
	CORSOrigins []string
}

// DatabaseConfig holds PostgreSQL settings. Replicas serve usage reads.
type DatabaseConfig struct {
	URL         string
	ReplicaURLs []string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
}

// RedisConfig holds the optional Redis used for distributed rate limiting
type RedisConfig struct {
	URL string
}

// StripeConfig holds payment provider credentials and the price IDs bound
// to the default plan catalog.
type StripeConfig struct {
	SecretKey       string
	WebhookSecret   string
	FreePriceID     string
	ProPriceID      string
	BusinessPriceID string
}

// AuthConfig holds identity settings
type AuthConfig struct {
	JWTSecret      string
	TokenTTL       time.Duration
	GoogleClientID string
}

// PlansConfig points at an optional YAML plan catalog
type PlansConfig struct {
	File string
}

// RateLimitConfig bounds unauthenticated auth endpoints per client IP
type RateLimitConfig struct {
	Requests int64
	Window   time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
	OTelSampleRatio    float64
}

// ExportConfig controls monthly usage statement archival to S3
type ExportConfig struct {
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
	AccessKey string
	SecretKey string
}

// Enabled reports whether statement export is configured
func (e ExportConfig) Enabled() bool {
	return e.Bucket != ""
}

// Load reads configuration from the environment without validating it.
// Binaries that need only part of the configuration validate the sections
// they use.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            getEnv("HOST", "0.0.0.0"),
			Port:            getEnv("PORT", "3001"),
			ReadTimeout:     getEnvDuration("READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
			ClientURL:       strings.TrimRight(getEnv("CLIENT_URL", "http://localhost:5173"), "/"),
			CORSOrigins:     getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:5174"}),
		},
		Database: DatabaseConfig{
			URL:         getEnv("POSTGRES_URL", ""),
			ReplicaURLs: getEnvList("POSTGRES_REPLICA_URLS", nil),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 20),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 2),
			Timeout:     getEnvDuration("POSTGRES_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Stripe: StripeConfig{
			SecretKey:       getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:   getEnv("STRIPE_WEBHOOK_SECRET", ""),
			FreePriceID:     getEnv("STRIPE_FREE_PRICE_ID", ""),
			ProPriceID:      getEnv("STRIPE_PRO_PRICE_ID", ""),
			BusinessPriceID: getEnv("STRIPE_BUSINESS_PRICE_ID", ""),
		},
		Auth: AuthConfig{
			JWTSecret:      getEnv("JWT_SECRET", ""),
			TokenTTL:       getEnvDuration("JWT_TTL", 24*time.Hour),
			GoogleClientID: getEnv("GOOGLE_CLIENT_ID", ""),
		},
		Plans: PlansConfig{
			File: getEnv("PLANS_FILE", ""),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt64("RATE_LIMIT_REQUESTS", 20),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.ParseLogLevel(getEnv("LOG_LEVEL", "info")),
			MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("OTEL_SERVICE_NAME", "creditmeter"),
			OTelServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			OTelInsecure:       getEnvBool("OTEL_INSECURE", true),
			OTelSampleRatio:    getEnvFloat("OTEL_SAMPLE_RATIO", 1.0),
		},
		Export: ExportConfig{
			Bucket:    getEnv("EXPORT_BUCKET", ""),
			Region:    getEnv("EXPORT_REGION", "us-east-1"),
			Endpoint:  getEnv("EXPORT_ENDPOINT", ""),
			PathStyle: getEnvBool("EXPORT_PATH_STYLE", false),
			AccessKey: getEnv("EXPORT_ACCESS_KEY", ""),
			SecretKey: getEnv("EXPORT_SECRET_KEY", ""),
		},
	}
}

// LoadConfig loads and fully validates the API server configuration
func LoadConfig() (*Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks every section the API server depends on
func (c *Config) Validate() error {
	return errors.Join(
		c.Server.Validate(),
		c.Database.Validate(),
		c.Stripe.Validate(),
		c.Auth.Validate(),
		c.RateLimit.Validate(),
		c.Observability.Validate(),
	)
}

func (s ServerConfig) Validate() error {
	if s.Port == "" {
		return fmt.Errorf("server port is required")
	}
	u, err := url.Parse(s.ClientURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("client URL must be an absolute URL, got %q", s.ClientURL)
	}
	return nil
}

func (d DatabaseConfig) Validate() error {
	if d.URL == "" {
		return fmt.Errorf("%sPOSTGRES_URL is required", envPrefix)
	}
	if d.MaxConns < d.MinConns {
		return fmt.Errorf("postgres max conns (%d) must be >= min conns (%d)", d.MaxConns, d.MinConns)
	}
	return nil
}

func (s StripeConfig) Validate() error {
	var errs []error
	if s.SecretKey == "" {
		errs = append(errs, fmt.Errorf("%sSTRIPE_SECRET_KEY is required", envPrefix))
	}
	if s.WebhookSecret == "" {
		errs = append(errs, fmt.Errorf("%sSTRIPE_WEBHOOK_SECRET is required", envPrefix))
	}
	if s.FreePriceID == "" {
		errs = append(errs, fmt.Errorf("%sSTRIPE_FREE_PRICE_ID is required", envPrefix))
	}
	return errors.Join(errs...)
}

func (a AuthConfig) Validate() error {
	if len(a.JWTSecret) < 32 {
		return fmt.Errorf("%sJWT_SECRET must be at least 32 bytes", envPrefix)
	}
	if a.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	return nil
}

func (r RateLimitConfig) Validate() error {
	if r.Requests <= 0 || r.Window <= 0 {
		return fmt.Errorf("rate limit requests and window must be positive")
	}
	return nil
}

func (o ObservabilityConfig) Validate() error {
	if !o.OTelEnabled {
		return nil
	}
	if o.OTelEndpoint == "" {
		return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
	}
	if o.OTelServiceName == "" {
		return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
	}
	return nil
}

// getEnv returns CREDITMETER_<key> or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := getEnv(key, ""); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := getEnv(key, ""); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := getEnv(key, ""); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := getEnv(key, ""); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := getEnv(key, ""); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty entries
func getEnvList(key string, defaultValue []string) []string {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
