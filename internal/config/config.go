package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"basecamp/internal/pricing"
)

type Config struct {
	Port            string
	Env             string
	ServiceName     string
	DBDSN           string
	RedisAddr       string
	CartCacheTTL    time.Duration
	CookieSecure    bool
	SessionIdle     time.Duration
	ShutdownTimeout time.Duration

	Currency         string
	TaxRate          decimal.Decimal
	PromoMinSubtotal decimal.Decimal
	PromoPercentOff  decimal.Decimal

	GatewayBaseURL   string
	GatewayKeyID     string
	GatewayKeySecret string
	GatewayTimeout   time.Duration
	PaymentIntentTTL time.Duration
	SweepInterval    time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] .env not loaded: %v", err)
	}
	cfg := FromEnv()
	log.Printf("[config] PORT=%s ENV=%s DB_DSN=%s REDIS_ADDR=%q GATEWAY_BASE_URL=%q CURRENCY=%s",
		cfg.Port, cfg.Env, cfg.DBDSN, cfg.RedisAddr, cfg.GatewayBaseURL, cfg.Currency)
	return cfg
}

// devGatewaySecret signs sandbox payments outside prod when no secret is set.
const devGatewaySecret = "basecamp-dev-secret"

var ErrGatewaySecretRequired = errors.New("config: GATEWAY_KEY_SECRET is required when ENV=prod or GATEWAY_BASE_URL is set")

// FromEnv builds a Config from the environment only; invalid values fall back to defaults.
func FromEnv() Config {
	cfg := Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("ENV", "dev"),
		ServiceName:     getEnv("SERVICE_NAME", "basecamp"),
		DBDSN:           getEnv("DB_DSN", "basecamp.db"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		CartCacheTTL:    getDuration("CART_CACHE_TTL", 15*time.Minute),
		CookieSecure:    getBool("COOKIE_SECURE", false),
		SessionIdle:     getDuration("SESSION_IDLE", 24*time.Hour),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		Currency:         strings.ToUpper(getEnv("CURRENCY", "INR")),
		TaxRate:          getDecimal("TAX_RATE", decimal.Zero),
		PromoMinSubtotal: getDecimal("PROMO_MIN_SUBTOTAL", decimal.Zero),
		PromoPercentOff:  getDecimal("PROMO_PERCENT_OFF", decimal.Zero),

		GatewayBaseURL:   strings.TrimRight(getEnv("GATEWAY_BASE_URL", ""), "/"),
		GatewayKeyID:     getEnv("GATEWAY_KEY_ID", "rzp_test_basecamp"),
		GatewayKeySecret: getEnv("GATEWAY_KEY_SECRET", ""),
		GatewayTimeout:   getDuration("GATEWAY_TIMEOUT", 10*time.Second),
		PaymentIntentTTL: getDuration("PAYMENT_INTENT_TTL", 30*time.Minute),
		SweepInterval:    getDuration("SWEEP_INTERVAL", time.Minute),
	}
	if cfg.GatewayKeySecret == "" && cfg.UsesSandbox() && cfg.Env != "prod" {
		cfg.GatewayKeySecret = devGatewaySecret
	}
	return cfg
}

// UsesSandbox is true when no remote gateway is configured.
func (c Config) UsesSandbox() bool { return c.GatewayBaseURL == "" }

// Validate rejects configurations that cannot run safely. An empty gateway
// secret verifies no signature, and the dev secret is public.
func (c Config) Validate() error {
	if c.GatewayKeySecret == "" || (c.GatewayKeySecret == devGatewaySecret && (c.Env == "prod" || !c.UsesSandbox())) {
		return ErrGatewaySecretRequired
	}
	return nil
}

// PricingRules turns the configured rates into checkout rules.
func (c Config) PricingRules() pricing.Rules {
	r := pricing.Rules{TaxRate: c.TaxRate}
	if c.PromoPercentOff.IsPositive() {
		r.Promotions = append(r.Promotions, pricing.Promotion{
			Name:        "configured",
			MinSubtotal: c.PromoMinSubtotal,
			PercentOff:  c.PromoPercentOff,
		})
	}
	return r
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getDecimal(key string, def decimal.Decimal) decimal.Decimal {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return def
	}
	return d
}
