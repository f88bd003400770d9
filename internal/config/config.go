package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type MySQLConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type GreenAPIConfig struct {
	InstanceID string
	APIToken   string
	BaseURL    string
	Enabled    bool
}

type Limits struct {
	MinPersone       int
	MaxPersone       int
	MaxNoteLength    int
	BookingDaysAhead int
}

type Config struct {
	Addr             string
	StaticDir        string
	CORSAllowOrigins string

	// Upstream reservation backend (Apps Script deployment or koi-backend).
	UpstreamURL  string
	APIToken     string
	APITokenHash string

	// Token gating the dashboard's mutation endpoints. Empty disables the gate.
	AdminToken string

	FetchTimeout    time.Duration
	RefreshInterval time.Duration
	CachePath       string

	// Readiness polling bounds for callers waiting on the first load.
	ReadyAttempts int
	ReadyDelay    time.Duration

	Limits   Limits
	GreenAPI GreenAPIConfig
	MySQL    MySQLConfig
}

func Load() Config {
	port := getenv("PORT", "8080")

	return Config{
		Addr:             ":" + port,
		StaticDir:        os.Getenv("STATIC_DIR"),
		CORSAllowOrigins: os.Getenv("CORS_ALLOW_ORIGINS"),
		UpstreamURL:      getenv("UPSTREAM_URL", "http://127.0.0.1:8090/"),
		APIToken:         os.Getenv("API_TOKEN"),
		APITokenHash:     os.Getenv("API_TOKEN_HASH"),
		AdminToken:       os.Getenv("ADMIN_TOKEN"),
		FetchTimeout:     time.Duration(getenvInt("FETCH_TIMEOUT_SECONDS", 9, 1, 120)) * time.Second,
		RefreshInterval:  time.Duration(getenvInt("REFRESH_INTERVAL_SECONDS", 30, 5, 3600)) * time.Second,
		CachePath:        getenv("CACHE_PATH", "koi-cache.db"),
		ReadyAttempts:    getenvInt("READY_ATTEMPTS", 20, 1, 1000),
		ReadyDelay:       time.Duration(getenvInt("READY_DELAY_MS", 500, 50, 60000)) * time.Millisecond,
		Limits: Limits{
			MinPersone:       getenvInt("MIN_PERSONE", 1, 1, 100),
			MaxPersone:       getenvInt("MAX_PERSONE", 20, 1, 500),
			MaxNoteLength:    getenvInt("MAX_NOTE_LENGTH", 500, 1, 10000),
			BookingDaysAhead: getenvInt("BOOKING_DAYS_AHEAD", 90, 1, 3650),
		},
		GreenAPI: GreenAPIConfig{
			InstanceID: os.Getenv("GREEN_API_INSTANCE_ID"),
			APIToken:   os.Getenv("GREEN_API_TOKEN"),
			BaseURL:    getenv("GREEN_API_BASE_URL", "https://api.green-api.com"),
			Enabled:    getenvBool("GREEN_API_ENABLED", false),
		},
		MySQL: MySQLConfig{
			Host:     getenv("DB_HOST", "127.0.0.1"),
			Port:     getenv("DB_PORT", "3306"),
			User:     getenv("DB_USER", "koi"),
			Password: getenv("DB_PASSWORD", "koi"),
			DBName:   getenv("DB_NAME", "koi"),
		},
	}
}

func getenv(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getenvInt(key string, fallback int, min int, max int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if min > 0 && v < min {
		return fallback
	}
	if max > 0 && v > max {
		return fallback
	}
	return v
}

func getenvBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}
