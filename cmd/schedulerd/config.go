package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// config is the daemon's environment-driven configuration.
type config struct {
	HTTPAddr     string
	DatabaseURL  string
	RedisAddr    string
	TickInterval time.Duration
	BatchSize    int
	LockTTL      time.Duration
}

// loadConfig reads configuration from the environment, after loading a
// .env file if one is present. An empty DATABASE_URL selects the
// in-memory store, which is only useful for development.
func loadConfig() config {
	_ = godotenv.Load()

	return config{
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:  getenv("DATABASE_URL", ""),
		RedisAddr:    getenv("REDIS_ADDR", ""),
		TickInterval: getenvDuration("TICK_INTERVAL", time.Minute),
		BatchSize:    getenvInt("BATCH_SIZE", 10),
		LockTTL:      getenvDuration("LOCK_TTL", 5*time.Minute),
	}
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
