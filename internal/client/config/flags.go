package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/dirlist/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
// Only -a and -i are consumed; the remaining arguments belong to the
// command being run.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	pollInterval := fs.Int("i", int(cfg.PollInterval.Milliseconds()), "progress poll interval (in milliseconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.PollInterval = time.Duration(*pollInterval) * time.Millisecond
}
