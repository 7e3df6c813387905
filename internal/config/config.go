package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvDev  = "development"
	EnvProd = "production"
)

type Config struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	Port        int    `envconfig:"PORT" default:"8080"`

	DB     DBConfig
	Tables TablesConfig
	Redis  RedisConfig
	Auth   AuthConfig
	CORS   CORSConfig
}

type DBConfig struct {
	Host     string `envconfig:"DB_HOST" required:"true"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Username string `envconfig:"DB_USERNAME" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	Database string `envconfig:"DB_DATABASE" required:"true"`
	Schema   string `envconfig:"DB_SCHEMA" default:"public"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`
}

// TablesConfig bounds the generic table engine.
type TablesConfig struct {
	DefaultPageLimit    int           `envconfig:"TABLES_DEFAULT_PAGE_LIMIT" default:"25"`
	MaxPageLimit        int           `envconfig:"TABLES_MAX_PAGE_LIMIT" default:"200"`
	ExactCountThreshold int64         `envconfig:"TABLES_EXACT_COUNT_THRESHOLD" default:"100000"`
	CountTimeout        time.Duration `envconfig:"TABLES_COUNT_TIMEOUT" default:"3s"`
	QueryTimeout        time.Duration `envconfig:"TABLES_QUERY_TIMEOUT" default:"10s"`
	ReadRetries         uint64        `envconfig:"TABLES_READ_RETRIES" default:"3"`
	CountConcurrency    int           `envconfig:"TABLES_COUNT_CONCURRENCY" default:"4"`
}

type RedisConfig struct {
	Addr           string        `envconfig:"REDIS_ADDR"`
	SchemaCacheTTL time.Duration `envconfig:"SCHEMA_CACHE_TTL" default:"15s"`
}

type AuthConfig struct {
	TokenSecret string `envconfig:"ADMIN_TOKEN_SECRET"`
	Disabled    bool   `envconfig:"AUTH_DISABLED" default:"false"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

// Load reads the environment (and .env, via godotenv) into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// LoadAuth reads only the token settings, for tooling that never touches
// the database.
func LoadAuth() (AuthConfig, error) {
	var auth AuthConfig
	if err := envconfig.Process("", &auth); err != nil {
		return auth, fmt.Errorf("failed to load auth configuration: %w", err)
	}
	if auth.TokenSecret == "" {
		return auth, errors.New("ADMIN_TOKEN_SECRET is not set")
	}
	return auth, nil
}

func (c *Config) Validate() error {
	if c.Environment != EnvDev && c.Environment != EnvProd {
		return fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDev, EnvProd, c.Environment)
	}
	if c.Tables.DefaultPageLimit < 1 {
		return errors.New("TABLES_DEFAULT_PAGE_LIMIT must be positive")
	}
	if c.Tables.MaxPageLimit < c.Tables.DefaultPageLimit {
		return errors.New("TABLES_MAX_PAGE_LIMIT must be at least TABLES_DEFAULT_PAGE_LIMIT")
	}
	if c.Tables.CountConcurrency < 1 {
		return errors.New("TABLES_COUNT_CONCURRENCY must be positive")
	}
	if c.Tables.CountTimeout <= 0 || c.Tables.QueryTimeout <= 0 {
		return errors.New("TABLES_COUNT_TIMEOUT and TABLES_QUERY_TIMEOUT must be positive")
	}
	if !c.Auth.Disabled && c.Auth.TokenSecret == "" {
		return errors.New("ADMIN_TOKEN_SECRET is required unless AUTH_DISABLED=true")
	}
	return nil
}

// DSN builds a postgres:// URL with escaped credentials.
func (c DBConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// Redacted is DSN without the password, for logs.
func (c DBConfig) Redacted() string {
	return fmt.Sprintf("postgres://%s:***@%s:%d/%s", c.Username, c.Host, c.Port, c.Database)
}
