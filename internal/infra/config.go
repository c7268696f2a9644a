package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	StoragePath        string
	GenerationBaseURL  string
	GenerationAPIKey   string
	GenerationModel    string
	DefaultAspectRatio string
	InterJobDelay      time.Duration
	SessionBaseURL     string
	AllowedOrigins     []string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
}

// LoadConfig loads configuration from the environment (plus an optional .env
// file) and applies defaults where needed.
func LoadConfig() (*Config, error) {
	// Optional; missing .env files are not an error.
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		StoragePath:        getEnv("STORAGE_PATH", "./storage"),
		GenerationBaseURL:  os.Getenv("GENERATION_BASE_URL"),
		GenerationAPIKey:   os.Getenv("GENERATION_API_KEY"),
		GenerationModel:    getEnv("GENERATION_MODEL", "image-alpha-1"),
		DefaultAspectRatio: getEnv("DEFAULT_ASPECT_RATIO", "LANDSCAPE"),
		InterJobDelay:      time.Millisecond * time.Duration(getEnvInt("INTER_JOB_DELAY_MS", 2000)),
		SessionBaseURL:     os.Getenv("SESSION_BASE_URL"),
		AllowedOrigins:     getEnvList("ALLOWED_ORIGINS"),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.GenerationBaseURL == "" {
		return nil, fmt.Errorf("GENERATION_BASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
