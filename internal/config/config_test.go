package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "5000", cfg.HTTPPort)
	assert.Equal(t, 5*time.Minute, cfg.WebhookTolerance)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, int64(1<<20), cfg.MaxRequestBodyBytes)
	assert.Equal(t, "shop-api", cfg.SessionIssuer)
}

func TestLoad_FromEnvAndDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("STRIPE_WEBHOOK_SECRET=whsec_file\nHTTP_PORT=9000\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("STRIPE_WEBHOOK_SECRET")
		os.Unsetenv("HTTP_PORT")
	})
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,https://shop.example.com")
	t.Setenv("CORS_ALLOWED_PATTERNS", "https://*.vercel.app")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "whsec_file", cfg.StripeWebhookSecret)
	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, []string{"http://localhost:5173", "https://shop.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, []string{"https://*.vercel.app"}, cfg.CORSAllowedPatterns)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestValidate(t *testing.T) {
	base := Config{
		SessionSecret:       testSecret,
		StripeWebhookSecret: "whsec",
		MaxRequestBodyBytes: 1024,
	}
	require.NoError(t, base.Validate())

	short := base
	short.SessionSecret = "short"
	assert.ErrorContains(t, short.Validate(), "SESSION_SECRET")

	noWebhook := base
	noWebhook.StripeWebhookSecret = " "
	assert.ErrorContains(t, noWebhook.Validate(), "STRIPE_WEBHOOK_SECRET")

	badPattern := base
	badPattern.CORSAllowedPatterns = []string{"https://vercel.app"}
	assert.ErrorContains(t, badPattern.Validate(), "scheme://*.domain")

	wildOrigin := base
	wildOrigin.CORSAllowedOrigins = []string{"https://*.example.com"}
	assert.ErrorContains(t, wildOrigin.Validate(), "CORS_ALLOWED_PATTERNS")

	pathOrigin := base
	pathOrigin.CORSAllowedOrigins = []string{"https://example.com/app"}
	assert.ErrorContains(t, pathOrigin.Validate(), "invalid CORS origin")
}
