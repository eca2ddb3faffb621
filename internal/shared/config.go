package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	BaseURL     string // empty: derive per request from proxy headers

	MapsAPIKey string
	PlacesRPS  int

	AnthropicKey   string
	AnthropicModel string

	SMS SMSConfig

	Workers  int
	CacheTTL time.Duration
}

// SMSConfig selects and configures the dispatch backend. Backend is
// "twilio" or "email"; the unused half may stay zero.
type SMSConfig struct {
	Backend string

	TwilioSID   string
	TwilioToken string
	TwilioFrom  string

	SMTPHost  string
	SMTPPort  int
	SMTPUser  string
	SMTPPass  string
	FromEmail string
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found")
	}
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/reviewboost?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", ""), // empty disables caching
		RedisDB:     atoi("REDIS_DB", 0),
		RedisPass:   env("REDIS_PASSWORD", ""),
		BaseURL:     env("BASE_URL", ""),

		MapsAPIKey: env("GOOGLE_MAPS_API_KEY", ""),
		PlacesRPS:  atoi("PLACES_RPS", 5),

		AnthropicKey:   env("ANTHROPIC_API_KEY", ""),
		AnthropicModel: env("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),

		SMS: SMSConfig{
			Backend:     env("SMS_BACKEND", "twilio"),
			TwilioSID:   env("TWILIO_ACCOUNT_SID", ""),
			TwilioToken: env("TWILIO_AUTH_TOKEN", ""),
			TwilioFrom:  env("TWILIO_FROM_NUMBER", ""),
			SMTPHost:    env("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:    atoi("SMTP_PORT", 587),
			SMTPUser:    env("SMTP_USER", ""),
			SMTPPass:    env("SMTP_PASSWORD", ""),
			FromEmail:   env("FROM_EMAIL", ""),
		},

		Workers:  atoi("RESOLVE_WORKERS", 8),
		CacheTTL: time.Duration(atoi("CACHE_TTL_SECONDS", 86400)) * time.Second,
	}
	if c.SMS.FromEmail == "" {
		c.SMS.FromEmail = c.SMS.SMTPUser
	}
	if c.MapsAPIKey == "" {
		log.Warn().Msg("GOOGLE_MAPS_API_KEY is empty; place search disabled")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
