package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider exposes read-only access to the application configuration.
// Components depend on this interface instead of the concrete Config so
// tests can substitute a minimal implementation.
type Provider interface {
	GetServerAddr() string
	GetAppHost() string
	GetAppPort() string
	GetAppBaseURL() string

	GetImagePath() string
	GetImageWebPath() string
	GetAvatarExtensions() []string
	GetAvatarMaxBytes() int64

	GetSessionTTL() time.Duration
	GetResetTokenTTL() time.Duration

	GetStoreDriver() string
	GetDBURL() string
	GetDBNs() string
	GetDBDb() string
	GetDBUser() string
	GetDBPass() string
	GetDBQueryTimeout() time.Duration
	GetDBExecuteTimeout() time.Duration

	GetEmailProvider() string
	GetEmailSender() string
	GetEmailAPIKey() string

	GetLogFormat() string
	GetLogLevel() string
}

// Store drivers understood by the server wiring.
const (
	StoreDriverSurreal = "surreal"
	StoreDriverMemory  = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	ServerAddr string
	AppHost    string
	AppPort    string
	AppBaseURL string

	ImagePath        string
	ImageWebPath     string
	AvatarExtensions []string
	AvatarMaxBytes   int64

	SessionTTL    time.Duration
	ResetTokenTTL time.Duration

	StoreDriver      string
	DBUrl            string
	DBNs             string
	DBDb             string
	DBUser           string
	DBPass           string
	DBQueryTimeout   time.Duration
	DBExecuteTimeout time.Duration

	EmailProvider string
	EmailSender   string
	EmailAPIKey   string

	LogFormat string
	LogLevel  string
}

var _ Provider = (*Config)(nil)

// New loads configuration from environment variables. A .env file in the
// working directory is loaded first if present; real environment variables
// take precedence over it.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		ServerAddr:       getEnv("SERVER_ADDR", ":8080"),
		AppHost:          getEnv("APP_HOST", "http://localhost"),
		AppPort:          getEnv("APP_PORT", "8080"),
		ImagePath:        getEnv("IMAGE_PATH", "uploads/avatars"),
		ImageWebPath:     getEnv("IMAGE_WEB_PATH", "/images/"),
		AvatarExtensions: splitList(getEnv("AVATAR_EXTENSIONS", "jpg,jpeg,png,gif,webp")),
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", StoreDriverSurreal)),
		DBUrl:            os.Getenv("SURREAL_URL"),
		DBNs:             os.Getenv("SURREAL_NS"),
		DBDb:             os.Getenv("SURREAL_DB"),
		DBUser:           os.Getenv("SURREAL_USER"),
		DBPass:           os.Getenv("SURREAL_PASS"),
		EmailProvider:    getEnv("EMAIL_PROVIDER", "log"),
		EmailSender:      os.Getenv("EMAIL_SENDER"),
		EmailAPIKey:      os.Getenv("EMAIL_API_KEY"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
	cfg.AppBaseURL = getEnv("APP_BASE_URL", cfg.AppHost+":"+cfg.AppPort)

	var err error
	if cfg.AvatarMaxBytes, err = getInt64("AVATAR_MAX_BYTES", 5<<20); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ResetTokenTTL, err = getDuration("RESET_TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.DBQueryTimeout, err = getDuration("DB_QUERY_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.DBExecuteTimeout, err = getDuration("DB_EXECUTE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration values are consistent.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverSurreal:
		if c.DBUrl == "" || c.DBNs == "" || c.DBDb == "" {
			return fmt.Errorf("required environment variables SURREAL_URL, SURREAL_NS, or SURREAL_DB are not set")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverSurreal, StoreDriverMemory, c.StoreDriver)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be a positive duration")
	}
	if c.ResetTokenTTL <= 0 {
		return fmt.Errorf("RESET_TOKEN_TTL must be a positive duration")
	}
	if c.AvatarMaxBytes <= 0 {
		return fmt.Errorf("AVATAR_MAX_BYTES must be positive")
	}
	if len(c.AvatarExtensions) == 0 {
		return fmt.Errorf("AVATAR_EXTENSIONS must list at least one extension")
	}
	if !strings.HasPrefix(c.ImageWebPath, "/") || !strings.HasSuffix(c.ImageWebPath, "/") {
		return fmt.Errorf("IMAGE_WEB_PATH must start and end with '/', got %q", c.ImageWebPath)
	}
	return nil
}

func (c *Config) GetServerAddr() string { return c.ServerAddr }
func (c *Config) GetAppHost() string { return c.AppHost }
func (c *Config) GetAppPort() string { return c.AppPort }
func (c *Config) GetAppBaseURL() string { return c.AppBaseURL }

func (c *Config) GetImagePath() string { return c.ImagePath }
func (c *Config) GetImageWebPath() string { return c.ImageWebPath }
func (c *Config) GetAvatarExtensions() []string { return c.AvatarExtensions }
func (c *Config) GetAvatarMaxBytes() int64 { return c.AvatarMaxBytes }

func (c *Config) GetSessionTTL() time.Duration { return c.SessionTTL }
func (c *Config) GetResetTokenTTL() time.Duration { return c.ResetTokenTTL }

func (c *Config) GetStoreDriver() string { return c.StoreDriver }
func (c *Config) GetDBURL() string { return c.DBUrl }
func (c *Config) GetDBNs() string { return c.DBNs }
func (c *Config) GetDBDb() string { return c.DBDb }
func (c *Config) GetDBUser() string { return c.DBUser }
func (c *Config) GetDBPass() string { return c.DBPass }
func (c *Config) GetDBQueryTimeout() time.Duration { return c.DBQueryTimeout }
func (c *Config) GetDBExecuteTimeout() time.Duration { return c.DBExecuteTimeout }

func (c *Config) GetEmailProvider() string { return c.EmailProvider }
func (c *Config) GetEmailSender() string { return c.EmailSender }
func (c *Config) GetEmailAPIKey() string { return c.EmailAPIKey }

func (c *Config) GetLogFormat() string { return c.LogFormat }
func (c *Config) GetLogLevel() string { return c.LogLevel }

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

// splitList turns "jpg, .PNG" into ["jpg", "png"].
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(part), "."))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
