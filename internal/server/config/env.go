package config

import (
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/dirlist/internal/flagx"
	"github.com/joho/godotenv"
)

const envPrefix = "DIRLIST_"

// parseEnv overlays DIRLIST_* environment variables. When -env names a
// dotenv file it is loaded first; variables already set in the process
// environment win over the file.
func parseEnv(config *Config) {
	if envFile := flagx.EnvFileFlags(); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			panic(err)
		}
	}

	config.EndpointAddrGRPC = getEnv("GRPC_ADDR", config.EndpointAddrGRPC)
	config.MetricsAddr = getEnv("METRICS_ADDR", config.MetricsAddr)
	config.RootDirectory = getEnv("ROOT_DIR", config.RootDirectory)
	config.CacheDirectory = getEnv("CACHE_DIR", config.CacheDirectory)
	config.ExtractionResultTTL = getEnvAsDuration("EXTRACTION_TTL", config.ExtractionResultTTL)
	config.WorkerPoolSize = getEnvAsInt("WORKER_POOL_SIZE", config.WorkerPoolSize)
	config.MaxDirectoryDownloadSize = getEnvAsInt64("MAX_DOWNLOAD_SIZE", config.MaxDirectoryDownloadSize)
	config.DestinationLockTimeout = getEnvAsDuration("DESTINATION_LOCK_TIMEOUT", config.DestinationLockTimeout)
	config.ZipLockTimeout = getEnvAsDuration("ZIP_LOCK_TIMEOUT", config.ZipLockTimeout)
	config.JanitorInterval = getEnvAsDuration("JANITOR_INTERVAL", config.JanitorInterval)
	config.Coordination = getEnv("COORDINATION", config.Coordination)
	config.DatabaseDSN = getEnv("DATABASE_DSN", config.DatabaseDSN)
	config.S3RootUser = getEnv("S3_ROOT_USER", config.S3RootUser)
	config.S3RootPassword = getEnv("S3_ROOT_PASSWORD", config.S3RootPassword)
	config.S3Bucket = getEnv("S3_BUCKET", config.S3Bucket)
	config.S3Region = getEnv("S3_REGION", config.S3Region)
	config.S3BaseEndpoint = getEnv("S3_BASE_ENDPOINT", config.S3BaseEndpoint)
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)
	config.LogFormat = getEnv("LOG_FORMAT", config.LogFormat)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(envPrefix + key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	value, err := strconv.ParseInt(os.Getenv(envPrefix+key), 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts a Go duration ("90s") or whole seconds ("90").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(envPrefix + key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
