package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, "", c.MetricsAddr)
	assert.Equal(t, "/srv/files", c.RootDirectory)
	assert.Equal(t, "/var/cache/dirlist", c.CacheDirectory)
	assert.Equal(t, time.Hour, c.ExtractionResultTTL)
	assert.Equal(t, 10, c.WorkerPoolSize)
	assert.Equal(t, int64(1<<30), c.MaxDirectoryDownloadSize)
	assert.Equal(t, 10*time.Second, c.DestinationLockTimeout)
	assert.Equal(t, 60*time.Second, c.ZipLockTimeout)
	assert.Equal(t, CoordinationMemory, c.Coordination)
	assert.Equal(t, "us-east-1", c.S3Region)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "json", c.LogFormat)
	assert.False(t, c.MirrorEnabled())
	assert.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero ttl", func(c *Config) { c.ExtractionResultTTL = 0 }, false},
		{"negative pool", func(c *Config) { c.WorkerPoolSize = -1 }, false},
		{"zero max size", func(c *Config) { c.MaxDirectoryDownloadSize = 0 }, false},
		{"empty root", func(c *Config) { c.RootDirectory = "" }, false},
		{"empty cache", func(c *Config) { c.CacheDirectory = "" }, false},
		{"zero lock timeout", func(c *Config) { c.ZipLockTimeout = 0 }, false},
		{"zero janitor interval", func(c *Config) { c.JanitorInterval = 0 }, false},
		{"unknown backend", func(c *Config) { c.Coordination = "etcd" }, false},
		{"postgres without dsn", func(c *Config) { c.Coordination = CoordinationPostgres; c.DatabaseDSN = "" }, false},
		{"postgres with dsn", func(c *Config) { c.Coordination = CoordinationPostgres }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			c.LoadDefaults()
			tt.mutate(&c)
			if tt.ok {
				assert.NoError(t, c.Validate())
			} else {
				assert.Error(t, c.Validate())
			}
		})
	}
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	c, err := LoadConfig()
	require.NoError(t, err)
	require.NotNil(t, c)

	var want Config
	want.LoadDefaults()
	assert.Equal(t, want.EndpointAddrGRPC, c.EndpointAddrGRPC)
	assert.Equal(t, want.ExtractionResultTTL, c.ExtractionResultTTL)
}

func TestLoadConfig_Invalid(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin", "-w", "0"}

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker pool size")
}
