// Package config holds process-wide settings. They are read once at boot and
// passed explicitly to the components that need them.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"dev"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort string `env:"HTTP_PORT" envDefault:"5000"`

	MongoURI    string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDBName string `env:"MONGO_DB_NAME" envDefault:"shop"`

	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	CartCacheTTL  time.Duration `env:"CART_CACHE_TTL" envDefault:"15m"`

	DBHost         string `env:"DB_HOST" envDefault:"localhost"`
	DBPort         int    `env:"DB_PORT" envDefault:"5432"`
	DBUser         string `env:"DB_USER" envDefault:"postgres"`
	DBPassword     string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName         string `env:"DB_NAME" envDefault:"shop"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"./internal/order/repository/migrations"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_ORDER_TOPIC" envDefault:"order-events"`

	SessionSecret string `env:"SESSION_SECRET"`
	SessionIssuer string `env:"SESSION_ISSUER" envDefault:"shop-api"`

	StripeWebhookSecret string        `env:"STRIPE_WEBHOOK_SECRET"`
	WebhookTolerance    time.Duration `env:"WEBHOOK_TOLERANCE" envDefault:"5m"`
	WebhookEventTTL     time.Duration `env:"WEBHOOK_EVENT_TTL" envDefault:"72h"`

	CORSAllowedOrigins  []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	CORSAllowedPatterns []string `env:"CORS_ALLOWED_PATTERNS" envSeparator:","`

	RequestTimeout      time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout     time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxRequestBodyBytes int64         `env:"MAX_REQUEST_BODY_BYTES" envDefault:"1048576"`
	CartRateLimit       float64       `env:"CART_RATE_LIMIT" envDefault:"20"`
	CartRateBurst       int           `env:"CART_RATE_BURST" envDefault:"40"`
}

// Load reads an optional .env file and then the process environment.
func Load(dotenvPaths ...string) (Config, error) {
	if len(dotenvPaths) == 0 {
		dotenvPaths = []string{".env"}
	}
	for _, p := range dotenvPaths {
		// a missing .env is normal outside local development
		_ = godotenv.Load(p)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if len(c.SessionSecret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 32 bytes"))
	}
	if strings.TrimSpace(c.StripeWebhookSecret) == "" {
		errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required"))
	}
	for _, origin := range c.CORSAllowedOrigins {
		if err := checkOrigin(origin, false); err != nil {
			errs = append(errs, err)
		}
	}
	for _, pattern := range c.CORSAllowedPatterns {
		if err := checkOrigin(pattern, true); err != nil {
			errs = append(errs, err)
		}
	}
	if c.MaxRequestBodyBytes <= 0 {
		errs = append(errs, errors.New("MAX_REQUEST_BODY_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

func checkOrigin(origin string, wildcard bool) error {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" || u.Path != "" {
		return fmt.Errorf("invalid CORS origin %q", origin)
	}
	hasWildcard := strings.HasPrefix(u.Host, "*.")
	if wildcard && (!hasWildcard || strings.Count(u.Host, "*") != 1) {
		return fmt.Errorf("CORS pattern %q must look like scheme://*.domain", origin)
	}
	if !wildcard && strings.Contains(u.Host, "*") {
		return fmt.Errorf("CORS origin %q must not contain a wildcard; use CORS_ALLOWED_PATTERNS", origin)
	}
	return nil
}
