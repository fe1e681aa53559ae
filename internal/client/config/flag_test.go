package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "address and interval", args: []string{"cmd", "-a", "127.0.0.1:9090", "-i", "250"},
			expected: &Config{ServerEndpointAddr: "127.0.0.1:9090", PollInterval: 250 * time.Millisecond}},
		{name: "command args are ignored", args: []string{"cmd", "progress", "abc", "-a", "h:1"},
			expected: &Config{ServerEndpointAddr: "h:1", PollInterval: time.Second}},
		{name: "incorrect interval", args: []string{"cmd", "-i", "abc"}, expectPanic: true, expected: &Config{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{PollInterval: time.Second}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
