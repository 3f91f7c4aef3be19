package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	SecretKey   string
	AdminEmail  string
	PublicURL   string

	ConfirmTokenTTL time.Duration
	SessionTTL      time.Duration
	RememberTTL     time.Duration
	CookieSecure    bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	MailTopic    string

	CORSOrigins  []string
	PostsPerPage int
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	cfg := Config{
		Port:        fallback(v.GetString("PORT"), "8080"),
		Env:         fallback(v.GetString("APP_ENV"), "development"),
		DatabaseURL: strings.TrimSpace(v.GetString("DATABASE_URL")),
		SecretKey:   strings.TrimSpace(v.GetString("SECRET_KEY")),
		AdminEmail:  strings.TrimSpace(v.GetString("ADMIN_EMAIL")),
		PublicURL:   strings.TrimRight(strings.TrimSpace(v.GetString("PUBLIC_URL")), "/"),

		ConfirmTokenTTL: positive(v.GetInt("CONFIRM_TOKEN_TTL_SECONDS"), 3600, time.Second),
		SessionTTL:      positive(v.GetInt("SESSION_TTL_MINUTES"), 120, time.Minute),
		RememberTTL:     positive(v.GetInt("REMEMBER_TTL_HOURS"), 720, time.Hour),
		CookieSecure:    v.GetBool("COOKIE_SECURE"),

		RedisAddr:     fallback(v.GetString("REDIS_ADDR"), "localhost:6379"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		KafkaBrokers: parseList(v.GetString("KAFKA_BROKERS")),
		MailTopic:    fallback(v.GetString("MAIL_TOPIC"), "kinder.mail"),

		CORSOrigins:  parseCSV(fallback(v.GetString("CORS_ALLOWED_ORIGINS"), "*")),
		PostsPerPage: positiveInt(v.GetInt("POSTS_PER_PAGE"), 20),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	if cfg.SecretKey == "" {
		return Config{}, errors.New("SECRET_KEY is required")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PUBLIC_URL", "http://localhost:8080")
	v.SetDefault("CONFIRM_TOKEN_TTL_SECONDS", 3600)
	v.SetDefault("SESSION_TTL_MINUTES", 120)
	v.SetDefault("REMEMBER_TTL_HOURS", 720)
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("MAIL_TOPIC", "kinder.mail")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("POSTS_PER_PAGE", 20)
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// ConfirmURL is the link prefix placed in confirmation mail.
func (c Config) ConfirmURL() string {
	return c.PublicURL + "/auth/confirm/"
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func positive(value, def int, unit time.Duration) time.Duration {
	return time.Duration(positiveInt(value, def)) * unit
}

func positiveInt(value, def int) int {
	if value <= 0 {
		return def
	}
	return value
}

func parseList(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseCSV(input string) []string {
	out := parseList(input)
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
