// Package config loads creditmeter configuration from CREDITMETER_-prefixed
// environment variables.
//
// Server:
//
//	CREDITMETER_HOST="0.0.0.0"
//	CREDITMETER_PORT="3001"
//	CREDITMETER_CLIENT_URL="https://app.example.com"   # checkout/portal redirects
//	CREDITMETER_CORS_ORIGINS="https://app.example.com"
//
// Database and cache:
//
//	CREDITMETER_POSTGRES_URL="postgres://localhost/creditmeter?sslmode=disable"
//	CREDITMETER_POSTGRES_REPLICA_URLS="postgres://replica1/creditmeter"
//	CREDITMETER_REDIS_URL="redis://localhost:6379/0"  # optional, enables distributed rate limiting
//
// Stripe:
//
//	CREDITMETER_STRIPE_SECRET_KEY="sk_live_..."
//	CREDITMETER_STRIPE_WEBHOOK_SECRET="whsec_..."
//	CREDITMETER_STRIPE_FREE_PRICE_ID="price_free"
//	CREDITMETER_STRIPE_PRO_PRICE_ID="price_pro"
//	CREDITMETER_STRIPE_BUSINESS_PRICE_ID="price_business"
//
// Identity:
//
//	CREDITMETER_JWT_SECRET="at-least-32-bytes-of-secret-material"
//	CREDITMETER_JWT_TTL="24h"
//	CREDITMETER_GOOGLE_CLIENT_ID="1234.apps.googleusercontent.com"
//
// Plans, rate limiting, observability, and statement export:
//
//	CREDITMETER_PLANS_FILE="/etc/creditmeter/plans.yaml"
//	CREDITMETER_RATE_LIMIT_REQUESTS="20"
//	CREDITMETER_RATE_LIMIT_WINDOW="1m"
//	CREDITMETER_LOG_LEVEL="info"
//	CREDITMETER_OTEL_ENABLED="true"
//	CREDITMETER_OTEL_ENDPOINT="otel-collector:4317"
//	CREDITMETER_EXPORT_BUCKET="creditmeter-statements"
//
// LoadConfig validates everything the API server needs. The sweeper and
// seeder call Load and validate only the sections they use.
package config
