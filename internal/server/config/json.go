package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/dirlist/internal/flagx"
	"github.com/dmitrijs2005/dirlist/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Durations use
// timex.Duration so that both "90s" and integer nanoseconds are accepted.
// Fields left out of the file keep their previous values.
type JsonConfig struct {
	EndpointAddrGRPC         string         `json:"endpoint_addr_grpc"`
	MetricsAddr              string         `json:"metrics_addr"`
	RootDirectory            string         `json:"root_directory"`
	CacheDirectory           string         `json:"cache_directory"`
	ExtractionResultTTL      timex.Duration `json:"extraction_result_ttl"`
	WorkerPoolSize           int            `json:"worker_pool_size"`
	MaxDirectoryDownloadSize int64          `json:"max_directory_download_size"`
	DestinationLockTimeout   timex.Duration `json:"destination_lock_timeout"`
	ZipLockTimeout           timex.Duration `json:"zip_lock_timeout"`
	JanitorInterval          timex.Duration `json:"janitor_interval"`
	Coordination             string         `json:"coordination"`
	DatabaseDSN              string         `json:"database_dsn"`
	S3RootUser               string         `json:"s3_root_user"`
	S3RootPassword           string         `json:"s3_root_password"`
	S3Bucket                 string         `json:"s3_bucket"`
	S3Region                 string         `json:"s3_region"`
	S3BaseEndpoint           string         `json:"s3_base_endpoint"`
	LogLevel                 string         `json:"log_level"`
	LogFormat                string         `json:"log_format"`
}

// parseJson overlays values from the JSON file named by -c or -config.
// Without the flag nothing is loaded. An unreadable or malformed file
// panics, like a bad command line.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.MetricsAddr, c.MetricsAddr)
	setString(&config.RootDirectory, c.RootDirectory)
	setString(&config.CacheDirectory, c.CacheDirectory)
	setString(&config.Coordination, c.Coordination)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)

	if c.ExtractionResultTTL.Duration != 0 {
		config.ExtractionResultTTL = c.ExtractionResultTTL.Duration
	}
	if c.DestinationLockTimeout.Duration != 0 {
		config.DestinationLockTimeout = c.DestinationLockTimeout.Duration
	}
	if c.ZipLockTimeout.Duration != 0 {
		config.ZipLockTimeout = c.ZipLockTimeout.Duration
	}
	if c.JanitorInterval.Duration != 0 {
		config.JanitorInterval = c.JanitorInterval.Duration
	}
	if c.WorkerPoolSize != 0 {
		config.WorkerPoolSize = c.WorkerPoolSize
	}
	if c.MaxDirectoryDownloadSize != 0 {
		config.MaxDirectoryDownloadSize = c.MaxDirectoryDownloadSize
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
