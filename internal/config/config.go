package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	HTTPAddr  string
	RedisAddr string
	RedisPass string

	AccessServiceURL string
	PushGatewayURL   string

	JWTSecret string

	// Account trust floor required for write operations.
	MinTrustScore int

	// Concurrent push sends per dispatch.
	PushConcurrency int
}

func Load() AppConfig {
	if err := godotenv.Load(); err != nil {
		log.Println("Messaging: No .env file found, relying on system env vars")
	}
	return AppConfig{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8020"),
		RedisAddr:        getEnv("REDIS_ADDR", "redis:6379"),
		RedisPass:        getEnv("REDIS_PASS", ""),
		AccessServiceURL: getEnv("ACCESS_SERVICE_URL", "http://u-access-service:8005"),
		PushGatewayURL:   getEnv("PUSH_GATEWAY_URL", "http://push-gateway:8030"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		MinTrustScore:    getEnvAsInt("MIN_TRUST_SCORE", 10),
		PushConcurrency:  getEnvAsInt("PUSH_CONCURRENCY", 8),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
