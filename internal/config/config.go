// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/pagesync/internal/wait"
)

// EnvPrefix namespaces environment overrides, e.g. PAGESYNC_SYNC_TIMEOUT.
const EnvPrefix = "PAGESYNC"

// Interface is the configuration handed to commands. The setters carry per-command
// overrides that have no config key of their own.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Sync() SyncConfig

	SetBrowserHeadless(bool)
	SetBrowserRemoteURL(url string)
}

// Config holds the whole application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	SyncCfg    SyncConfig    `mapstructure:"sync" yaml:"sync"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Sync() SyncConfig       { return c.SyncCfg }

func (c *Config) SetBrowserHeadless(b bool)      { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserRemoteURL(url string) { c.BrowserCfg.RemoteURL = url }

type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to colour names (red, green, yellow, ...). Empty means plain.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	RemoteURL         string        `mapstructure:"remote_url" yaml:"remote_url"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	Concurrency       int           `mapstructure:"concurrency" yaml:"concurrency"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// SyncConfig carries the process-wide synchronization defaults.
type SyncConfig struct {
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	MaxAttempts       int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	SettleDelay       time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	ContinueOnTimeout bool          `mapstructure:"continue_on_timeout" yaml:"continue_on_timeout"`
	DefaultIndex      string        `mapstructure:"default_index" yaml:"default_index"`
	ListMaxRefreshes  int           `mapstructure:"list_max_refreshes" yaml:"list_max_refreshes"`
	MarkerTag         string        `mapstructure:"marker_tag" yaml:"marker_tag"`
}

// Policy returns the immutable wait policy described by the section.
func (s SyncConfig) Policy() wait.Policy {
	return wait.Policy{
		Timeout:      s.Timeout,
		PollInterval: s.PollInterval,
		MaxAttempts:  s.MaxAttempts,
		SettleDelay:  s.SettleDelay,
	}
}

// OnTimeout maps continue_on_timeout onto the timeout disposition.
func (s SyncConfig) OnTimeout() wait.OnTimeout {
	return wait.FromContinueFlag(s.ContinueOnTimeout)
}

// Validate checks the sync section.
func (s SyncConfig) Validate() error {
	if err := s.Policy().Validate(); err != nil {
		return err
	}
	if n, err := strconv.Atoi(s.DefaultIndex); err != nil || n < 0 {
		return fmt.Errorf("default_index must be a non-negative integer, got %q", s.DefaultIndex)
	}
	if s.ListMaxRefreshes < 0 {
		return errors.New("list_max_refreshes must not be negative")
	}
	if strings.TrimSpace(s.MarkerTag) == "" {
		return errors.New("marker_tag must not be empty")
	}
	return nil
}

// NewDefaultConfig returns the configuration produced by SetDefaults alone.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pagesync")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.concurrency", 4)
	v.SetDefault("browser.navigation_timeout", "60s")

	def := wait.DefaultPolicy
	v.SetDefault("sync.timeout", def.Timeout)
	v.SetDefault("sync.poll_interval", def.PollInterval)
	v.SetDefault("sync.max_attempts", def.MaxAttempts)
	v.SetDefault("sync.settle_delay", def.SettleDelay)
	v.SetDefault("sync.continue_on_timeout", false)
	v.SetDefault("sync.default_index", "0")
	v.SetDefault("sync.list_max_refreshes", 10)
	v.SetDefault("sync.marker_tag", "dndelete")
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.BrowserCfg.Concurrency <= 0 {
		return fmt.Errorf("browser.concurrency must be a positive integer")
	}
	if c.BrowserCfg.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	if err := c.SyncCfg.Validate(); err != nil {
		return fmt.Errorf("sync configuration invalid: %w", err)
	}
	return nil
}
