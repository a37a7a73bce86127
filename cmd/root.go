package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tphakala/wildwatch-go/cmd/config"
	"github.com/tphakala/wildwatch-go/cmd/detect"
	"github.com/tphakala/wildwatch-go/cmd/live"
	"github.com/tphakala/wildwatch-go/cmd/notify"
	"github.com/tphakala/wildwatch-go/internal/buildinfo"
	"github.com/tphakala/wildwatch-go/internal/conf"
	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/logger"
)

// RootCommand creates and returns the root command. settings is filled in before any
// subcommand runs.
func RootCommand(settings *conf.Settings, info *buildinfo.Info) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "wildwatch",
		Short:         "Wildlife detection and sighting reports from a camera",
		Version:       info.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml (default: search ., ~/.config/wildwatch, /etc/wildwatch)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	conf.BindFlag(rootCmd.PersistentFlags(), "debug", "debug")

	rootCmd.AddCommand(
		live.Command(settings, info),
		detect.Command(settings, info),
		notify.Command(settings),
		config.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[conf.SkipLoadAnnotation] == "true" {
			return nil
		}
		return initialize(cmd, settings, info, configFile)
	}

	return rootCmd
}

// initialize is called before any subcommand runs. It binds the executing command's
// flags, loads the configuration and sets up logging and error telemetry.
func initialize(cmd *cobra.Command, settings *conf.Settings, info *buildinfo.Info, configFile string) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := conf.FlagKey(f); ok && bindErr == nil {
			bindErr = viper.BindPFlag(key, f)
		}
	})
	if bindErr != nil {
		return errors.New(bindErr).
			Component("cli").
			Category(errors.CategoryConfiguration).
			Build()
	}

	loaded, err := conf.Load(configFile)
	if err != nil {
		return err
	}
	*settings = *loaded

	if err := setupLogging(settings); err != nil {
		return err
	}

	if settings.Sentry.Enabled {
		if err := errors.InitSentry(settings.Sentry.DSN, info.Release()); err != nil {
			logger.Global().Module("cli").Warn("error telemetry disabled", logger.Error(err))
		}
	}
	return nil
}

// setupLogging replaces the bootstrap logger with one built from settings.
func setupLogging(settings *conf.Settings) error {
	cfg := settings.Logging
	if settings.Debug {
		cfg.DefaultLevel = string(logger.LogLevelDebug)
		if cfg.Console != nil {
			console := *cfg.Console
			console.Level = string(logger.LogLevelDebug)
			cfg.Console = &console
		}
	}
	cl, err := logger.NewCentralLogger(&cfg)
	if err != nil {
		return errors.New(err).
			Component("cli").
			Category(errors.CategoryConfiguration).
			Context("operation", "setup_logging").
			Build()
	}
	logger.SetGlobal(cl)
	return nil
}
