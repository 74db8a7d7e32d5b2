package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnv() Env {
	return Env{
		DatabaseDSN: "root:@tcp(127.0.0.1:3306)/travel_app",
		JWTSecret:   "secret",
		Revolut: RevolutEnv{
			APIKey:        "sk_test",
			WebhookSecret: "wsk_test",
		},
		RateLimit: RateLimitEnv{Limit: 10, Window: time.Minute},
	}
}

func TestValidateAcceptsCompleteEnv(t *testing.T) {
	require.NoError(t, validEnv().Validate())
}

func TestValidateRequiresWebhookSecret(t *testing.T) {
	env := validEnv()
	env.Revolut.WebhookSecret = ""

	err := env.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REVOLUT_WEBHOOK_SECRET")
}

func TestValidateAllowsExplicitUnsignedMode(t *testing.T) {
	env := validEnv()
	env.Revolut.WebhookSecret = ""
	env.Revolut.AllowUnsignedWebhooks = true

	require.NoError(t, env.Validate())
}

func TestValidateReportsEveryProblem(t *testing.T) {
	err := Env{}.Validate()
	require.Error(t, err)
	for _, key := range []string{"REVOLUT_API_KEY", "REVOLUT_WEBHOOK_SECRET", "JWT_SECRET", "DATABASE_DSN", "RATE_LIMIT"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoadEnvDefaults(t *testing.T) {
	t.Setenv("APP_ADDR", "")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("SITE_URL", "https://trips.example.com/")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("REVOLUT_SANDBOX", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	env := LoadEnv()
	assert.Equal(t, ":8080", env.AppAddr)
	assert.Contains(t, env.DatabaseDSN, "clientFoundRows=true")
	assert.Equal(t, "https://trips.example.com", env.SiteURL)
	assert.Equal(t, 30*time.Second, env.RateLimit.Window)
	assert.False(t, env.Revolut.Sandbox)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, env.CORSOrigins)
}
