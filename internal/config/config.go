package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

type config struct {
	Production         bool          `env:"PRODUCTION" envDefault:"false"`
	Port               string        `env:"PORT" envDefault:"8787"`
	PostgresUrl        string        `env:"POSTGRES_URL,required"`
	RedisUrl           string        `env:"REDIS_URL" envDefault:""`
	ApiKey             string        `env:"API_KEY" envDefault:""`
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID" envDefault:""`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET" envDefault:""`
	GoogleRedirectURL  string        `env:"GOOGLE_REDIRECT_URL" envDefault:"http://127.0.0.1:8085/"`
	GoogleScopes       []string      `env:"GOOGLE_SCOPES" envDefault:"https://www.googleapis.com/auth/calendar.readonly" envSeparator:","`
	EncryptionKey      string        `env:"OAUTH_ENCRYPTION_KEY" envDefault:""`
	IcsURLs            []string      `env:"ICS_URLS" envSeparator:","`
	CalendarsFile      string        `env:"CALENDARS_FILE" envDefault:""`
	SyncSchedule       string        `env:"SYNC_SCHEDULE" envDefault:"@every 5m"`
	SyncTimeout        time.Duration `env:"SYNC_TIMEOUT" envDefault:"10m"`
	CacheTTL           time.Duration `env:"EXPANSION_CACHE_TTL" envDefault:"30s"`
	CacheSize          int           `env:"EXPANSION_CACHE_SIZE" envDefault:"200"`
	HttpTimeout        time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	SentryDSN          string        `env:"SENTRY_DSN" envDefault:""`
	CorsOrigins        []string      `env:"CORS_ORIGINS" envSeparator:","`
}

var conf config

// Load reads .env when present and parses the environment.
func Load() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	if err := env.Parse(&conf); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	return nil
}

func Production() bool {
	return conf.Production
}

func Port() string {
	return conf.Port
}

func PostgresURL() string {
	return conf.PostgresUrl
}

func RedisURL() string {
	return conf.RedisUrl
}

func ApiKey() string {
	return conf.ApiKey
}

func GoogleClientID() string {
	return conf.GoogleClientID
}

func GoogleClientSecret() string {
	return conf.GoogleClientSecret
}

func GoogleRedirectURL() string {
	return conf.GoogleRedirectURL
}

func GoogleScopes() []string {
	return conf.GoogleScopes
}

func EncryptionKey() string {
	return conf.EncryptionKey
}

func IcsURLs() []string {
	return conf.IcsURLs
}

func CalendarsFile() string {
	return conf.CalendarsFile
}

func SyncSchedule() string {
	return conf.SyncSchedule
}

func SyncTimeout() time.Duration {
	return conf.SyncTimeout
}

func CacheTTL() time.Duration {
	return conf.CacheTTL
}

func CacheSize() int {
	return conf.CacheSize
}

func HttpTimeout() time.Duration {
	return conf.HttpTimeout
}

func SentryDSN() string {
	return conf.SentryDSN
}

func CorsOrigins() []string {
	return conf.CorsOrigins
}
