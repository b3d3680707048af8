package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/nfrund/accounts/internal/config"
	"github.com/nfrund/accounts/internal/logging"
	"github.com/stretchr/testify/require"
)

// NewTestConfig returns an in-memory configuration suitable for unit tests.
// It does not read the environment.
func NewTestConfig() *config.Config {
	return &config.Config{
		ServerAddr:       ":0",
		AppHost:          "http://localhost",
		AppPort:          "8080",
		AppBaseURL:       "http://localhost:8080",
		ImagePath:        "uploads/avatars",
		ImageWebPath:     "/images/",
		AvatarExtensions: []string{"jpg", "jpeg", "png", "gif", "webp"},
		AvatarMaxBytes:   1 << 20,
		SessionTTL:       24 * time.Hour,
		ResetTokenTTL:    time.Hour,
		StoreDriver:      config.StoreDriverMemory,
		DBQueryTimeout:   5 * time.Second,
		DBExecuteTimeout: 10 * time.Second,
		EmailProvider:    "log",
		EmailSender:      "noreply@example.com",
		LogFormat:        "text",
		LogLevel:         "error",
	}
}

// ConfigForTests loads the .env.test file, if the project has one, into the
// test environment and returns the resulting configuration. Without a
// SURREAL_URL the memory store driver is selected.
func ConfigForTests(t *testing.T) *config.Config {
	t.Helper()

	if root, ok := projectRoot(); ok {
		if env, err := godotenv.Read(filepath.Join(root, ".env.test")); err == nil {
			for key, value := range env {
				t.Setenv(key, value)
			}
		}
	}
	if os.Getenv("SURREAL_URL") == "" {
		t.Setenv("STORE_DRIVER", config.StoreDriverMemory)
	}

	cfg, err := config.FromEnv()
	require.NoError(t, err, "failed to build test config")

	logging.New(cfg.LogFormat, cfg.LogLevel)
	return cfg
}

// SurrealConfigForTests is ConfigForTests for integration tests that need a
// running SurrealDB. The test is skipped in short mode or when SURREAL_URL
// is not configured.
func SurrealConfigForTests(t *testing.T) *config.Config {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	cfg := ConfigForTests(t)
	if cfg.GetDBURL() == "" {
		t.Skip("skipping integration test: SURREAL_URL is not set")
	}
	return cfg
}

// projectRoot walks up from the working directory to the directory holding go.mod.
func projectRoot() (string, bool) {
	path, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if _, err := os.Stat(filepath.Join(path, "go.mod")); err == nil {
			return path, true
		}
		if path == filepath.Dir(path) {
			return "", false
		}
		path = filepath.Dir(path)
	}
}
