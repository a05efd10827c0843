package main

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	HTTPAddr   string     // "127.0.0.1:8080"
	DBDSN      string     // sqlite file path
	AgeKeyPath string     // path to age identity file
	VaultPath  string     // path to encrypted secrets file
	ConfigFile string     // path to toolroute.yaml
	LogLevel   slog.Level // slog level
}

// defaultDataPath returns ~/.toolroute/<filename>, falling back to a
// CWD-relative path if the home directory can't be resolved.
func defaultDataPath(filename string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filename
	}
	return filepath.Join(home, ".toolroute", filename)
}

func loadConfig() (*Config, error) {
	cfg := &Config{
		HTTPAddr:   envOr("TOOLROUTE_HTTP_ADDR", "127.0.0.1:8080"),
		DBDSN:      envOr("TOOLROUTE_DB_DSN", defaultDataPath("toolroute.db")),
		AgeKeyPath: envOr("TOOLROUTE_AGE_KEY", defaultDataPath("identity.key")),
		VaultPath:  envOr("TOOLROUTE_VAULT", defaultDataPath("secrets.age")),
		ConfigFile: envOr("TOOLROUTE_CONFIG", defaultDataPath("toolroute.yaml")),
		LogLevel:   parseLogLevel(envOr("TOOLROUTE_LOG_LEVEL", "info")),
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
