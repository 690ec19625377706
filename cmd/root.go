package cmd

import (
	"errors"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeConfigError indicates the configuration failed validation.
	ExitCodeConfigError = 2
)

var (
	// configPath is the YAML configuration file shared by every command.
	configPath string

	// debug enables verbose logging across the application.
	debug bool
)

// rootCmd represents the base command for the credbroker application.
var rootCmd = &cobra.Command{
	Use:   "credbroker",
	Short: "OAuth credential broker for Slack installations and Google Sheets integrations",
	Long: `credbroker runs the OAuth flows that connect a Slack workspace to the
reporting bot and a Slack user to their Google Sheets. It stores the resulting
credentials encrypted at rest and keeps Google access tokens fresh.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "credbroker version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		return ExitCodeConfigError
	}
	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newKeygenCmd())
	rootCmd.AddCommand(newInstallationsCmd())
	rootCmd.AddCommand(newGoogleCmd())
}
