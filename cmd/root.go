// Package cmd wires the sightclick command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sightclick/internal/config"
	"github.com/xkilldash9x/sightclick/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// flagKeys maps command-line flags to the configuration keys they override.
// A flag only takes effect when the running command defines it and the user
// set it.
var flagKeys = map[string]string{
	"log-level":    "logger.level",
	"display":      "display.backend",
	"url":          "display.url",
	"image":        "display.image_path",
	"headless":     "display.headless",
	"provider":     "oracle.provider",
	"model":        "oracle.model",
	"threshold":    "orchestrator.change_threshold",
	"settle":       "orchestrator.settle_delay",
	"region-size":  "orchestrator.region_size",
	"strategies":   "orchestrator.strategies",
	"run-timeout":  "orchestrator.run_timeout",
	"narrate":      "narration.enabled",
	"metrics-addr": "metrics.addr",
}

// NewRootCommand builds a fresh command tree. Each call returns an
// independent tree so tests never share flag state.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "sightclick",
		Short:         "sightclick clicks on-screen elements described in plain language.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting sightclick", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, config.Interface(cfg)))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	rootCmd.AddCommand(newClickCmd())
	rootCmd.AddCommand(newCalibrateCmd())
	rootCmd.AddCommand(newCaptureCmd())
	rootCmd.AddCommand(newPositionCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the command tree with a signal-aware context. Errors are
// logged here; callers only map them to an exit code.
func Execute(ctx context.Context) error {
	defer observability.Sync()

	err := NewRootCommand().ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var oe *outcomeError
	if !errors.As(err, &oe) {
		observability.GetLogger().Error("Command failed.", zap.Error(err))
	}
	return err
}

// initializeConfig layers .env, the config file, SIGHTCLICK_ environment
// variables and the flags of the running command onto v.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SIGHTCLICK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("binding flag --%s: %w", name, err)
			}
		}
	}
	if dryRun, err := cmd.Flags().GetBool("dry-run"); err == nil && dryRun {
		v.Set("display.backend", config.DisplayImage)
	}
	return nil
}

// getConfigFromContext returns the configuration stored by PersistentPreRunE.
func getConfigFromContext(ctx context.Context) (config.Interface, error) {
	cfg, ok := ctx.Value(configKey).(config.Interface)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not initialized")
	}
	return cfg, nil
}
