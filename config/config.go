package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	defaultConcurrency     = 4
	defaultPartSizeMB      = 8
	defaultPartConcurrency = 5
)

type Config struct {
	ApiURL    string
	AccessKey string
	SecretKey string
	Region    string

	// Concurrency is the number of objects transferred at once.
	Concurrency int
	// PartSizeMB and PartConcurrency tune the ranged download of a single object.
	PartSizeMB      int
	PartConcurrency int
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn(".env file not found, using environment variables only")
	}

	config := &Config{
		ApiURL:          getEnv("API_URL", getEnv("AWS_ENDPOINT_URL", "")),
		AccessKey:       getEnv("ACCESS_KEY", getEnv("AWS_ACCESS_KEY_ID", "")),
		SecretKey:       getEnv("SECRET_KEY", getEnv("AWS_SECRET_ACCESS_KEY", "")),
		Region:          getEnv("REGION", getEnv("AWS_DEFAULT_REGION", getEnv("AWS_REGION", ""))),
		Concurrency:     getEnvInt("SYNC_CONCURRENCY", defaultConcurrency),
		PartSizeMB:      getEnvInt("SYNC_PART_SIZE_MB", defaultPartSizeMB),
		PartConcurrency: getEnvInt("SYNC_PART_CONCURRENCY", defaultPartConcurrency),
	}

	return config, nil
}

// HasStaticCredentials reports whether both halves of a key pair are configured.
// Without them the SDK default credential chain is used.
func (c *Config) HasStaticCredentials() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		slog.Warn("ignoring invalid integer setting", "key", key, "value", raw)
		return defaultValue
	}
	return value
}
