// cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesync/internal/config"
	"github.com/xkilldash9x/pagesync/internal/observability"
	"github.com/xkilldash9x/pagesync/internal/wait"
)

// appState is filled in by PersistentPreRunE and read by the subcommands.
type appState struct {
	cfg      config.Interface
	defaults *wait.Defaults
	logger   *zap.Logger
}

// NewRootCommand builds a fresh command tree. Each call has its own viper instance, so
// trees never share flag or config state.
func NewRootCommand() *cobra.Command {
	rootCmd, _ := newRootCmd(chromeProvider{})
	return rootCmd
}

func newRootCmd(provider pageProvider) (*cobra.Command, *appState) {
	v := viper.New()
	state := &appState{}
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "pagesync",
		Short:         "pagesync drives pages that update asynchronously and waits for every update to land.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.SetDefaults(v)
			if err := initializeConfig(v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "pagesync"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}
			observability.InitializeLogger(cfg.Logger())

			defaults, err := wait.NewDefaults(cfg.Sync().Policy())
			if err != nil {
				return fmt.Errorf("invalid sync policy: %w", err)
			}

			state.cfg = cfg
			state.defaults = defaults
			state.logger = observability.GetLogger()
			state.logger.Debug("Configuration loaded.",
				zap.String("version", Version),
				zap.String("config_file", v.ConfigFileUsed()))
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.Duration("timeout", 0, "default completion timeout for every action")
	pf.Duration("poll-interval", 0, "default poll interval, must be below the timeout")
	_ = v.BindPFlag("logger.level", pf.Lookup("log-level"))
	_ = v.BindPFlag("sync.timeout", pf.Lookup("timeout"))
	_ = v.BindPFlag("sync.poll_interval", pf.Lookup("poll-interval"))

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.AddCommand(newRunCmd(state, provider), newVersionCmd())
	return rootCmd, state
}

// Execute runs the command line and reports failures. The caller owns the exit code.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			observability.GetLogger().Info("Interrupted.")
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	observability.Sync()
	return err
}

// initializeConfig points v at the config file and the PAGESYNC_ environment. A
// missing default config file is not an error.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}
