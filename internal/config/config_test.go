// internal/config/config_test.go
package config

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pagesync/internal/wait"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "pagesync", cfg.Logger().ServiceName)
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 4, cfg.Browser().Concurrency)
	assert.Equal(t, 60*time.Second, cfg.Browser().NavigationTimeout)

	s := cfg.Sync()
	assert.Equal(t, 5*time.Second, s.Timeout)
	assert.Equal(t, 250*time.Millisecond, s.PollInterval)
	assert.Equal(t, 3, s.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, s.SettleDelay)
	assert.False(t, s.ContinueOnTimeout)
	assert.Equal(t, "0", s.DefaultIndex)
	assert.Equal(t, 10, s.ListMaxRefreshes)
	assert.Equal(t, "dndelete", s.MarkerTag)

	assert.NoError(t, cfg.Validate())
}

func TestSyncConfig_Policy(t *testing.T) {
	s := NewDefaultConfig().Sync()
	assert.Equal(t, wait.DefaultPolicy, s.Policy())
	assert.Equal(t, wait.Raise, s.OnTimeout())

	s.ContinueOnTimeout = true
	assert.Equal(t, wait.Warn, s.OnTimeout())
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "zero browser concurrency",
			mutate:  func(c *Config) { c.BrowserCfg.Concurrency = 0 },
			wantErr: "browser.concurrency must be a positive integer",
		},
		{
			name:    "zero navigation timeout",
			mutate:  func(c *Config) { c.BrowserCfg.NavigationTimeout = 0 },
			wantErr: "browser.navigation_timeout",
		},
		{
			name: "poll interval not below timeout",
			mutate: func(c *Config) {
				c.SyncCfg.Timeout = time.Second
				c.SyncCfg.PollInterval = time.Second
			},
			wantErr: "sync configuration invalid",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.SyncCfg.MaxAttempts = 0 },
			wantErr: "sync configuration invalid",
		},
		{
			name:    "negative default index",
			mutate:  func(c *Config) { c.SyncCfg.DefaultIndex = "-1" },
			wantErr: "default_index",
		},
		{
			name:    "garbage default index",
			mutate:  func(c *Config) { c.SyncCfg.DefaultIndex = "first" },
			wantErr: "default_index",
		},
		{
			name:    "negative list refreshes",
			mutate:  func(c *Config) { c.SyncCfg.ListMaxRefreshes = -1 },
			wantErr: "list_max_refreshes",
		},
		{
			name:    "blank marker tag",
			mutate:  func(c *Config) { c.SyncCfg.MarkerTag = "  " },
			wantErr: "marker_tag",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

// -- Viper Integration Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("yaml overrides defaults", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		yaml := `
logger:
  level: debug
browser:
  headless: false
  remote_url: ws://127.0.0.1:9222
  args: ["--lang=en-US"]
sync:
  timeout: 12s
  poll_interval: 100ms
  continue_on_timeout: true
  default_index: "2"
`
		require.NoError(t, v.ReadConfig(bytes.NewBufferString(yaml)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Logger().Level)
		assert.False(t, cfg.Browser().Headless)
		assert.Equal(t, "ws://127.0.0.1:9222", cfg.Browser().RemoteURL)
		assert.Equal(t, []string{"--lang=en-US"}, cfg.Browser().Args)
		assert.Equal(t, 12*time.Second, cfg.Sync().Timeout)
		assert.Equal(t, 100*time.Millisecond, cfg.Sync().PollInterval)
		assert.Equal(t, wait.Warn, cfg.Sync().OnTimeout())
		assert.Equal(t, "2", cfg.Sync().DefaultIndex)
		// Untouched keys keep their defaults.
		assert.Equal(t, 3, cfg.Sync().MaxAttempts)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("PAGESYNC_SYNC_MAX_ATTEMPTS", "7")
		v := viper.New()
		SetDefaults(v)
		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.Sync().MaxAttempts)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("sync.poll_interval", "10s")

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}

func TestSetters(t *testing.T) {
	var cfg Interface = NewDefaultConfig()
	require.True(t, cfg.Browser().Headless)
	cfg.SetBrowserHeadless(false)
	cfg.SetBrowserRemoteURL("ws://host:9222")

	assert.False(t, cfg.Browser().Headless)
	assert.Equal(t, "ws://host:9222", cfg.Browser().RemoteURL)
}
