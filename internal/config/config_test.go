package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Storage.Driver)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 500.0, cfg.Auction.DefaultMinimumBidIncrement)
	assert.Equal(t, 40*time.Second, cfg.Auction.DefaultBidTimeBuffer)
	assert.Equal(t, time.Hour, cfg.Scheduler.EndingSoonWindow)
	assert.Equal(t, "@every 5m", cfg.Scheduler.EndingSoonSpec)
	assert.Equal(t, 0, cfg.Auction.MaxExtensions)
}

func TestLoadFromFile_Overrides(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, `
storage:
  driver: memory
redis:
  enabled: false
auction:
  default_bid_time_buffer: 30s
  max_extensions: 5
`))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Auction.DefaultBidTimeBuffer)
	assert.Equal(t, 5, cfg.Auction.MaxExtensions)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		var c Config
		c.Storage.Driver = "memory"
		c.Auction.MinBidTimeBuffer = 15 * time.Second
		c.Auction.MaxBidTimeBuffer = 120 * time.Second
		c.Auction.DefaultBidTimeBuffer = 40 * time.Second
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"ok", func(c *Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }, `unknown storage driver "mongo"`},
		{"inverted bounds", func(c *Config) { c.Auction.MaxBidTimeBuffer = time.Second }, "invalid bid time buffer bounds"},
		{"default outside bounds", func(c *Config) { c.Auction.DefaultBidTimeBuffer = 5 * time.Minute }, "default bid time buffer"},
		{"negative cap", func(c *Config) { c.Auction.MaxExtensions = -1 }, "max_extensions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
