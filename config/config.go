package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultSessionSecret signs sessions when SESSION_SECRET is unset. It is
// only accepted with ENV=local.
const DefaultSessionSecret = "bet-tracker-dev-key-change-in-production"

var ErrDefaultSessionSecret = errors.New("SESSION_SECRET must be set outside ENV=local")

// Config centralizes the environment the service runs with.
type Config struct {
	Env  string // "local", "dev", "prod"
	Port string
	// AppURL is the public base URL used in emails and Stripe redirects.
	AppURL string

	DB DBConfig

	RedisAddr string

	SessionSecret string
	SessionHours  int

	Stripe StripeConfig
	SMTP   SMTPConfig
}

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PriceID       string
}

// Enabled reports whether checkout and portal calls can reach Stripe.
func (s StripeConfig) Enabled() bool { return s.SecretKey != "" }

type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

// Enabled reports whether every SMTP setting needed to send mail is present.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.Port != "" && s.User != "" && s.Pass != "" && s.From != ""
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	// a missing .env is the normal case outside local development
	_ = godotenv.Load()

	cfg := Config{
		Env:    getEnv("ENV", "local"),
		Port:   getEnv("PORT", "5000"),
		AppURL: strings.TrimRight(getEnv("APP_URL", "http://127.0.0.1:5000"), "/"),

		DB: DBConfig{
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASSWORD", ""),
			Host:     getEnv("DB_HOST", "127.0.0.1"),
			Port:     getEnv("DB_PORT", "3306"),
			Name:     getEnv("DB_NAME", "locktracker"),
		},

		RedisAddr: getEnv("REDIS_ADDR", ""),

		SessionSecret: getEnv("SESSION_SECRET", DefaultSessionSecret),
		SessionHours:  getEnvInt("SESSION_HOURS", 12),

		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			PriceID:       getEnv("STRIPE_PRICE_ID", ""),
		},
	}
	cfg.SMTP = SMTPConfig{
		Host: getEnv("SMTP_HOST", ""),
		Port: getEnv("SMTP_PORT", ""),
		User: getEnv("SMTP_USER", ""),
		Pass: getEnv("SMTP_PASS", ""),
		From: getEnv("SMTP_FROM", ""),
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.User
	}
	return cfg
}

// Validate rejects settings that are unsafe to serve with.
func (c Config) Validate() error {
	if c.Env != "local" && (c.SessionSecret == "" || c.SessionSecret == DefaultSessionSecret) {
		return ErrDefaultSessionSecret
	}
	return nil
}

// getEnv returns the environment value or def when the key is unset.
func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
