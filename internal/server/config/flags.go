package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/dirlist/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string        gRPC bind address (e.g., ":50051")
//	-m string        Prometheus bind address (e.g., ":9090")
//	-r string        root directory
//	-k string        zip cache directory
//	-t int           extraction result TTL, seconds
//	-w int           worker pool size
//	-x int           max directory download size, bytes
//	-coordination    "memory" or "postgres"
//	-d string        PostgreSQL DSN
//	-u string        S3 root user
//	-p string        S3 root password
//	-b string        S3 bucket name
//	-g string        S3 region
//	-e string        S3 base endpoint
//	-log-level       debug, info, warn or error
//	-log-format      json or text
//
// os.Args is filtered with flagx.FilterArgs first so that -c and -env,
// which are read elsewhere, do not trip the parser.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-m", "-r", "-k", "-t", "-w", "-x", "-coordination",
		"-d", "-u", "-p", "-b", "-g", "-e", "-log-level", "-log-format",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "address and port to serve metrics")
	fs.StringVar(&config.RootDirectory, "r", config.RootDirectory, "root directory")
	fs.StringVar(&config.CacheDirectory, "k", config.CacheDirectory, "zip cache directory")

	ttl := fs.Int("t", int(config.ExtractionResultTTL.Seconds()), "extraction result TTL (in seconds)")

	fs.IntVar(&config.WorkerPoolSize, "w", config.WorkerPoolSize, "worker pool size")
	fs.Int64Var(&config.MaxDirectoryDownloadSize, "x", config.MaxDirectoryDownloadSize, "max directory download size (in bytes)")
	fs.StringVar(&config.Coordination, "coordination", config.Coordination, "coordination backend: memory or postgres")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "log format: json or text")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// Only an explicit -t overrides, so sub-second TTLs from JSON survive.
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.ExtractionResultTTL = time.Duration(*ttl) * time.Second
		}
	})
}
