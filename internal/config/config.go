package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string
	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers []string
	JWTSecret    string

	// Record store backing: "file" or "redis".
	StoreBackend string
	StoreDir     string
	StorePrefix  string

	SyncInterval  time.Duration
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration

	AdminUsername     string
	AdminPasswordHash string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using default values", "error", err)
	}

	cfg := &Config{
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		PostgresDSN:       getenv("POSTGRES_DSN", "host=localhost user=postgres password=postgres dbname=nexypass sslmode=disable"),
		RedisAddr:         getenv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:      []string{getenv("KAFKA_BROKER", "localhost:9092")},
		JWTSecret:         getenv("JWT_SECRET", "supersecret"),
		StoreBackend:      getenv("STORE_BACKEND", "file"),
		StoreDir:          getenv("STORE_DIR", "data"),
		StorePrefix:       getenv("STORE_PREFIX", "nexypass_"),
		SyncInterval:      duration("SYNC_INTERVAL", 30*time.Second),
		ProbeInterval:     duration("PROBE_INTERVAL", 10*time.Second),
		ProbeTimeout:      duration("PROBE_TIMEOUT", 5*time.Second),
		AdminUsername:     getenv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
	}

	slog.Info("config loaded",
		"http_addr", cfg.HTTPAddr,
		"postgres_dsn", cfg.PostgresDSN,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
		"store_backend", cfg.StoreBackend,
		"sync_interval", cfg.SyncInterval,
	)
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	slog.Warn("invalid duration, using default", "key", key, "value", v, "default", fallback)
	return fallback
}
