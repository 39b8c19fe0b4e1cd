// Package cmd contains CLI command definitions
package cmd

import (
	"fmt"
	"os"

	"github.com/ethpandaops/sitecheck/internal/config"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Logger is the shared logger instance for all commands
	Logger *logrus.Logger

	envFile string

	rootCmd = &cobra.Command{
		Use:   "sitecheck",
		Short: "sitecheck - cross-browser, mobile, performance and stability checks",
		Long: `sitecheck drives real browsers against a served build of the site and runs the
cross-browser, mobile, performance and stability suites across a project matrix.

Run without arguments to launch interactive mode, or use subcommands for direct operations.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if envFile == "" {
				return nil
			}

			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("loading env file %s: %w", envFile, err)
			}

			InitLogger()

			return nil
		},
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// InitLogger (re)creates the shared logger from LOG_LEVEL.
func InitLogger() {
	Logger = logrus.New()

	logLevel := os.Getenv(config.EnvLogLevel)
	if logLevel == "" {
		logLevel = "info"
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		// Can't use Logger here since it might not be set up yet
		fmt.Printf("Invalid %s '%s', defaulting to 'info'\n", config.EnvLogLevel, logLevel)
		level = logrus.InfoLevel
	}
	Logger.SetLevel(level)
}

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()

	InitLogger()

	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "Env file to load before running")
}
