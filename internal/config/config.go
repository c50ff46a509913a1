package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr         string
	CORSOrigins  []string
	PushThrottle time.Duration
}

// FeedConfig holds the odds feed connection configuration
type FeedConfig struct {
	URL                  string
	MaxReconnectAttempts int
	BaseDelay            time.Duration
	MaxDelay             time.Duration
}

// BoardConfig holds the initial board view
type BoardConfig struct {
	Sport      string
	Markets    []string
	Books      []string
	SharpBooks []string
}

// CatalogConfig holds reference-data sources
type CatalogConfig struct {
	APIGatewayURL string
	AlexandriaDSN string // optional; replaces the gateway when set
	RedisURL      string // optional; enables the cache when set
	CacheTTL      time.Duration
}

// Config holds all application configuration
type Config struct {
	Env     string
	Server  ServerConfig
	Feed    FeedConfig
	Board   BoardConfig
	Catalog CatalogConfig
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Env: getEnv("ENV", "local"),
		Server: ServerConfig{
			Addr:         getEnv("SERVER_ADDR", ":8090"),
			CORSOrigins:  getList("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001"),
			PushThrottle: time.Duration(getInt("PUSH_THROTTLE_MS", 250)) * time.Millisecond,
		},
		Feed: FeedConfig{
			URL:                  getEnv("FEED_URL", "ws://localhost:8080/ws"),
			MaxReconnectAttempts: getInt("MAX_RECONNECT_ATTEMPTS", 10),
			BaseDelay:            time.Duration(getInt("RECONNECT_BASE_DELAY_MS", 1000)) * time.Millisecond,
			MaxDelay:             time.Duration(getInt("RECONNECT_MAX_DELAY_MS", 30000)) * time.Millisecond,
		},
		Board: BoardConfig{
			Sport:      getEnv("SPORT", "basketball_nba"),
			Markets:    getList("MARKETS", ""),
			Books:      getList("BOOKS", ""),
			SharpBooks: getList("SHARP_BOOKS", "pinnacle,circasports,bookmaker"),
		},
		Catalog: CatalogConfig{
			APIGatewayURL: getEnv("API_GATEWAY_URL", "http://localhost:8081"),
			AlexandriaDSN: getEnv("ALEXANDRIA_DSN", ""),
			RedisURL:      getEnv("REDIS_URL", ""),
			CacheTTL:      time.Duration(getInt("CATALOG_CACHE_TTL_SECONDS", 300)) * time.Second,
		},
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getInt parses a positive integer, falling back to the default
func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

// getList splits a comma-separated variable, dropping blanks
func getList(key, defaultValue string) []string {
	parts := strings.Split(getEnv(key, defaultValue), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
