// -- cmd/root.go --
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesense/internal/config"
	"github.com/xkilldash9x/pagesense/internal/observability"
)

var (
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pagesense",
	Short: "Pagesense resolves intents and drives actions against an HTML document.",
	// Version is dynamically set at build time. See cmd/version.go.
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// This function runs before any command, setting up config and logging.
		if err := initializeConfig(); err != nil {
			return err
		}

		var cfg config.Config
		if err := viper.Unmarshal(&cfg); err != nil {
			// Initialize a fallback logger if config unmarshal fails.
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "pagesense"})
			return fmt.Errorf("failed to unmarshal config: %w", err)
		}

		observability.InitializeLogger(cfg.Logger)

		observability.GetLogger().Debug("Starting pagesense", zap.String("version", Version))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newRunCmd())
}

// initializeConfig reads in config file and ENV variables if set.
func initializeConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PAGESENSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars.
	}
	return nil
}
