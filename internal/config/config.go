package config

import (
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	API    APIConfig
	Socket SocketConfig
	Sync   SyncConfig
	Server ServerConfig
}

// APIConfig points at the notification REST API.
type APIConfig struct {
	BaseURL  string
	Token    string
	PageSize int
}

type SocketConfig struct {
	URL            string
	ReconnectDelay int // seconds
}

// SyncConfig holds the cross-session sync marker location.
type SyncConfig struct {
	MarkerPath string
}

// ServerConfig configures the dev server binary.
type ServerConfig struct {
	Addr      string
	JWTSecret string
}

// Load builds the configuration from environment variables with defaults.
// Callers load .env first (godotenv in the mains).
func Load() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:  getEnvOrDefault("NOTIFY_API_URL", "http://localhost:8090"),
			Token:    getEnvOrDefault("NOTIFY_TOKEN", ""),
			PageSize: getEnvIntOrDefault("NOTIFY_PAGE_SIZE", 50),
		},
		Socket: SocketConfig{
			URL:            getEnvOrDefault("NOTIFY_SOCKET_URL", "ws://localhost:8090/ws"),
			ReconnectDelay: getEnvIntOrDefault("NOTIFY_RECONNECT_DELAY", 2),
		},
		Sync: SyncConfig{
			MarkerPath: getEnvOrDefault("NOTIFY_SYNC_MARKER",
				filepath.Join(os.TempDir(), "campusnotify", "sync-marker")),
		},
		Server: ServerConfig{
			Addr:      getEnvOrDefault("NOTIFYD_ADDR", ":8090"),
			JWTSecret: getEnvOrDefault("JWT_SECRET", "dev-secret"),
		},
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
