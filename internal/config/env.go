package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Env struct {
	AppAddr     string
	GinMode     string
	LogLevel    string
	DatabaseDSN string
	SiteURL     string
	JWTSecret   string
	CORSOrigins []string

	RedisAddr     string
	RedisPassword string

	Revolut   RevolutEnv
	SMTP      SMTPEnv
	RateLimit RateLimitEnv

	// EmailAsync routes outgoing mail through the in-process message router.
	EmailAsync bool
}

type RevolutEnv struct {
	APIKey        string
	WebhookSecret string
	Sandbox       bool
	// AllowUnsignedWebhooks is a local-development escape hatch; it is only
	// honoured when WebhookSecret is empty.
	AllowUnsignedWebhooks bool
	Timeout               time.Duration
}

type SMTPEnv struct {
	Host        string
	Port        string
	Username    string
	Password    string
	FromName    string
	FromAddress string
}

// Configured reports whether real SMTP delivery is possible.
func (s SMTPEnv) Configured() bool {
	return s.Host != "" && s.Port != "" && s.Username != "" && s.Password != ""
}

type RateLimitEnv struct {
	Limit  int
	Window time.Duration
}

// LoadEnv reads the process environment. A .env file in the working
// directory is merged first when present.
func LoadEnv() Env {
	_ = godotenv.Load()

	appAddr := envString("APP_ADDR", ":8080")

	return Env{
		AppAddr:     appAddr,
		GinMode:     envString("GIN_MODE", ""),
		LogLevel:    envString("LOG_LEVEL", "info"),
		DatabaseDSN: envString("DATABASE_DSN", "root:@tcp(127.0.0.1:3306)/travel_app?parseTime=true&loc=UTC&charset=utf8mb4&clientFoundRows=true&timeout=5s&readTimeout=30s&writeTimeout=30s"),
		SiteURL:     strings.TrimRight(envString("SITE_URL", "http://localhost:3000"), "/"),
		JWTSecret:   envString("JWT_SECRET", ""),
		CORSOrigins: envList("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			"http://localhost:5173",
		}),
		RedisAddr:     envString("REDIS_ADDR", ""),
		RedisPassword: envString("REDIS_PASSWORD", ""),
		Revolut: RevolutEnv{
			APIKey:                envString("REVOLUT_API_KEY", ""),
			WebhookSecret:         envString("REVOLUT_WEBHOOK_SECRET", ""),
			Sandbox:               envBool("REVOLUT_SANDBOX", true),
			AllowUnsignedWebhooks: envBool("WEBHOOK_ALLOW_UNSIGNED", false),
			Timeout:               envDuration("REVOLUT_TIMEOUT", 30*time.Second),
		},
		SMTP: SMTPEnv{
			Host:        envString("SMTP_HOST", ""),
			Port:        envString("SMTP_PORT", ""),
			Username:    envString("SMTP_USERNAME", ""),
			Password:    envString("SMTP_PASSWORD", ""),
			FromName:    envString("SMTP_FROM_NAME", "Travel Bookings"),
			FromAddress: envString("SMTP_FROM_ADDRESS", "bookings@localhost"),
		},
		RateLimit: RateLimitEnv{
			Limit:  envInt("RATE_LIMIT_REQUESTS", 10),
			Window: envDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		EmailAsync: envBool("EMAIL_ASYNC", true),
	}
}

// Validate fails fast on configuration that would silently weaken payment
// handling at runtime.
func (e Env) Validate() error {
	var errs []error
	if e.Revolut.APIKey == "" {
		errs = append(errs, errors.New("REVOLUT_API_KEY is required"))
	}
	if e.Revolut.WebhookSecret == "" && !e.Revolut.AllowUnsignedWebhooks {
		errs = append(errs, errors.New("REVOLUT_WEBHOOK_SECRET is required (set WEBHOOK_ALLOW_UNSIGNED=true for local development only)"))
	}
	if e.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if e.DatabaseDSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN is required"))
	}
	if e.RateLimit.Limit <= 0 || e.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive"))
	}
	return errors.Join(errs...)
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envList(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
