package config

import (
	"net"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the configuration for the bundled local test server
// (cmd/tunnelfy), the service tunnelfy-client forwards to by default.
type Config struct {
	ListenAddr   string
	ResponseBody string
	LogRequests  bool
}

// Load loads the configuration from environment variables or a .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:   getenvOrDefault("LISTEN_ADDR", "127.0.0.1:8080"),
		ResponseBody: getenvOrDefault("RESPONSE_BODY", "tunnelfy local test server\n"),
		LogRequests:  strings.ToLower(os.Getenv("LOG_REQUESTS")) != "false",
	}

	if _, _, err := net.SplitHostPort(cfg.ListenAddr); err != nil {
		return nil, &ConfigError{Message: "LISTEN_ADDR must be a host:port address: " + err.Error()}
	}

	return cfg, nil
}

// getenvOrDefault is a helper to get an environment variable or a default value.
func getenvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ConfigError represents a configuration loading error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
