// Package cli is the crm_automation command line.
package cli

import (
	"errors"
	"fmt"
	"os"

	"crm_automation/infrastructure/config"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags "-X crm_automation/presentation/cli.Version=..."
var Version = "dev"

var (
	flagConfigFile string
	flagEnvFile    string
)

var rootCmd = &cobra.Command{
	Use:   "crm_automation",
	Short: "Browser-driven CRM end-to-end suite backed by a locator repository",
	Long: `crm_automation runs Gherkin features and scripted workflows against a CRM
through Playwright or Selenium. Elements are addressed by symbolic paths such as
loginPage.usernameField that resolve through a pattern repository with fallbacks.

Configuration is read from crm_automation.yaml, CRM_* environment variables
(a .env file is loaded first) and flags, in increasing priority.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "config file (default ./crm_automation.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "dotenv file loaded before reading CRM_* variables")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("patterns", "patterns.yaml", "pattern repository (YAML or JSON)")
	rootCmd.PersistentFlags().String("data", "testdata.yaml", "test data file")
	rootCmd.PersistentFlags().Bool("cache", true, "memoize resolved locators")
}

// exitError carries a process exit status without printing anything further
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Execute - runs the root command and exits the process on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig - effective configuration for cmd plus a logger at the configured level
func loadConfig(cmd *cobra.Command) (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: flagConfigFile,
		EnvFile:    flagEnvFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := config.NewLogger(cfg.Log)
	logger.SetOutput(cmd.ErrOrStderr())
	return cfg, logger, nil
}
