package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
//
// Provider credentials are deliberately optional: a missing secret excludes
// that provider from the enabled set instead of failing startup.
type Config struct {
	AppEnv         string
	Port           string
	DatabaseURL    string
	JWTSecret      string
	PaymentMode    string
	PublicBaseURL  string
	ReceiptBase    string
	GeoIPDBPath    string
	AllowedOrigins []string

	StripeSecretKey     string
	StripeWebhookSecret string

	KhaltiSecretKey string
	KhaltiBaseURL   string

	EsewaMerchantID string
	EsewaSecretKey  string
	EsewaBaseURL    string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	SweepInterval      time.Duration
	SweepPendingMaxAge int
}

// PaymentModeMock is the global switch that short-circuits all gateway calls.
const PaymentModeMock = "mock"

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	publicBase := strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/")

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		PaymentMode:    getEnv("PAYMENT_MODE", "live"),
		PublicBaseURL:  publicBase,
		ReceiptBase:    getEnv("RECEIPT_BASE_URL", publicBase+"/receipts"),
		GeoIPDBPath:    os.Getenv("GEOIP_DB_PATH"),
		AllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", publicBase)),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		KhaltiSecretKey: os.Getenv("KHALTI_SECRET_KEY"),
		KhaltiBaseURL:   getEnv("KHALTI_BASE_URL", "https://a.khalti.com/api/v2"),

		EsewaMerchantID: os.Getenv("ESEWA_MERCHANT_ID"),
		EsewaSecretKey:  os.Getenv("ESEWA_SECRET_KEY"),
		EsewaBaseURL:    getEnv("ESEWA_BASE_URL", "https://epay.esewa.com.np"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		SweepInterval:      time.Minute * time.Duration(getEnvInt("SWEEP_INTERVAL_MINUTES", 60)),
		SweepPendingMaxAge: getEnvInt("SWEEP_PENDING_MAX_AGE_HOURS", 72),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// MockMode reports whether gateway calls must be short-circuited.
func (c *Config) MockMode() bool {
	return strings.EqualFold(c.PaymentMode, PaymentModeMock)
}

// StripeConfigured reports whether both Stripe secrets are present.
func (c *Config) StripeConfigured() bool {
	return c.StripeSecretKey != "" && c.StripeWebhookSecret != ""
}

// KhaltiConfigured reports whether the Khalti secret key is present.
func (c *Config) KhaltiConfigured() bool {
	return c.KhaltiSecretKey != ""
}

// EsewaConfigured reports whether the eSewa merchant credentials are present.
func (c *Config) EsewaConfigured() bool {
	return c.EsewaMerchantID != "" && c.EsewaSecretKey != ""
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
