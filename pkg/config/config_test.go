package config

import (
	"strings"
	"testing"
	"time"

	"github.com/platinummonkey/creditmeter/pkg/observability"
)

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CREDITMETER_POSTGRES_URL", "postgres://localhost/creditmeter?sslmode=disable")
	t.Setenv("CREDITMETER_STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("CREDITMETER_STRIPE_WEBHOOK_SECRET", "whsec_123")
	t.Setenv("CREDITMETER_STRIPE_FREE_PRICE_ID", "price_free")
	t.Setenv("CREDITMETER_JWT_SECRET", strings.Repeat("s", 32))
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns prefixed env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(envPrefix+tt.key, tt.envValue)
			}
			if got := getEnv(tt.key, tt.defaultValue); got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("CREDITMETER_LIST", " a, ,b ,c")
	got := getEnvList("LIST", nil)
	if strings.Join(got, "|") != "a|b|c" {
		t.Errorf("getEnvList() = %v, want [a b c]", got)
	}

	if got := getEnvList("LIST_UNSET", []string{"x"}); len(got) != 1 || got[0] != "x" {
		t.Errorf("getEnvList() default = %v", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("CREDITMETER_DUR", "90s")
	if got := getEnvDuration("DUR", time.Second); got != 90*time.Second {
		t.Errorf("getEnvDuration() = %v, want 90s", got)
	}

	t.Setenv("CREDITMETER_DUR_BAD", "soon")
	if got := getEnvDuration("DUR_BAD", time.Second); got != time.Second {
		t.Errorf("getEnvDuration() with bad value = %v, want default", got)
	}
}

func TestLoadConfig(t *testing.T) {
	setValidEnv(t)
	t.Setenv("CREDITMETER_CLIENT_URL", "https://app.example.com/")
	t.Setenv("CREDITMETER_POSTGRES_REPLICA_URLS", "postgres://r1/db,postgres://r2/db")
	t.Setenv("CREDITMETER_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.ClientURL != "https://app.example.com" {
		t.Errorf("ClientURL = %q, want trailing slash trimmed", cfg.Server.ClientURL)
	}
	if len(cfg.Database.ReplicaURLs) != 2 {
		t.Errorf("ReplicaURLs = %v, want 2 entries", cfg.Database.ReplicaURLs)
	}
	if cfg.Observability.LogLevel != observability.DebugLevel {
		t.Errorf("LogLevel = %v, want debug", cfg.Observability.LogLevel)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("TokenTTL = %v, want 24h default", cfg.Auth.TokenTTL)
	}
	if cfg.Export.Enabled() {
		t.Error("Export should be disabled without a bucket")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing postgres url",
			mutate:  func(c *Config) { c.Database.URL = "" },
			wantErr: "POSTGRES_URL is required",
		},
		{
			name:    "missing free price",
			mutate:  func(c *Config) { c.Stripe.FreePriceID = "" },
			wantErr: "STRIPE_FREE_PRICE_ID is required",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "short" },
			wantErr: "JWT_SECRET must be at least 32 bytes",
		},
		{
			name:    "relative client url",
			mutate:  func(c *Config) { c.Server.ClientURL = "/app" },
			wantErr: "client URL must be an absolute URL",
		},
		{
			name: "otel without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelEndpoint = ""
			},
			wantErr: "OpenTelemetry endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setValidEnv(t)
			cfg := Load()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
