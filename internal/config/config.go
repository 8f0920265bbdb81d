// Package config loads the service configuration from a .env file and the
// process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	pomoAuth "github.com/MrEthical07/pomoAuth"
	"github.com/MrEthical07/pomoAuth/accountdb"
	"github.com/joho/godotenv"
)

// OAuthClient is one provider's registration.
type OAuthClient struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Enabled reports whether the provider is configured.
func (c OAuthClient) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type Config struct {
	SecretKey    string
	JWTAlgorithm string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration

	DBUser string
	DBPass string
	DBHost string
	DBPort string
	DBName string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	MailTopic    string

	Google OAuthClient
	Yandex OAuthClient

	HTTPAddr       string
	SecureCookies  bool
	LogLevel       string
	MetricsEnabled bool
	RateLimitRPS   int
	RateLimitBurst int
}

// Load reads path (ignored when missing) and then the environment. Variables
// already set in the environment win over the file.
func Load(path string) (Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := Config{
		SecretKey:    os.Getenv("SECRET_KEY"),
		JWTAlgorithm: EnvDefault("JWT_ALGORITHM", "HS256"),
		AccessTTL:    time.Duration(EnvIntDefault("ACCESS_TOKEN_EXPIRATION", 15)) * time.Minute,
		RefreshTTL:   time.Duration(EnvIntDefault("REFRESH_TOKEN_EXPIRATION", 7)) * 24 * time.Hour,

		DBUser: os.Getenv("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: os.Getenv("DB_HOST"),
		DBPort: EnvDefault("DB_PORT", "5432"),
		DBName: os.Getenv("DB_NAME"),

		RedisAddr:     EnvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       EnvIntDefault("REDIS_DB", 0),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		MailTopic:    EnvDefault("MAIL_TOPIC", "mail"),

		Google: OAuthClient{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURI:  os.Getenv("GOOGLE_REDIRECT_URI"),
		},
		Yandex: OAuthClient{
			ClientID:     os.Getenv("YANDEX_CLIENT_ID"),
			ClientSecret: os.Getenv("YANDEX_CLIENT_SECRET"),
			RedirectURI:  os.Getenv("YANDEX_REDIRECT_URI"),
		},

		HTTPAddr:       EnvDefault("HTTP_ADDR", ":8000"),
		SecureCookies:  EnvBoolDefault("COOKIE_SECURE", true),
		LogLevel:       EnvDefault("LOG_LEVEL", "info"),
		MetricsEnabled: EnvBoolDefault("METRICS_ENABLED", true),
		RateLimitRPS:   EnvIntDefault("RATE_LIMIT_RPS", 10),
		RateLimitBurst: EnvIntDefault("RATE_LIMIT_BURST", 20),
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.SecretKey == "" {
		return errors.New("config: SECRET_KEY is required")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("config: token expirations must be positive")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return errors.New("config: rate limits must not be negative")
	}
	return nil
}

// HasDatabase reports whether the postgres settings are present.
func (c Config) HasDatabase() bool {
	return c.DBHost != "" && c.DBName != ""
}

// Database returns the account store settings.
func (c Config) Database() accountdb.Config {
	return accountdb.Config{
		Driver: accountdb.DriverPostgres,
		DSN:    accountdb.PostgresDSN(c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName),
	}
}

// Engine maps the environment onto the engine configuration.
func (c Config) Engine() pomoAuth.Config {
	cfg := pomoAuth.DefaultConfig()
	cfg.JWT.Secret = []byte(c.SecretKey)
	cfg.JWT.Algorithm = strings.ToUpper(c.JWTAlgorithm)
	cfg.JWT.AccessTTL = c.AccessTTL
	cfg.JWT.RefreshTTL = c.RefreshTTL
	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.MetricsEnabled
	return cfg
}

// CSV splits a comma separated list, dropping blanks.
func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
