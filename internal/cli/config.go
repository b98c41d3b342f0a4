package cli

import (
	"os"
)

// Config holds CLI configuration
type Config struct {
	ServerAddr string
	AdminURL   string
	Output     string
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerAddr: getEnvOrDefault("PAIRCHAT_SERVER", "localhost:8080"),
		AdminURL:   getEnvOrDefault("PAIRCHAT_ADMIN", "http://localhost:8081"),
		Output:     "text",
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
