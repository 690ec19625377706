package cmd

import (
	"github.com/spf13/cobra"

	"credbroker/internal/app"
	"credbroker/internal/formatting"
)

// openApplication bootstraps the application for a one-shot command. Logging
// is discarded unless --debug is set so that command output stays clean.
func openApplication(cmd *cobra.Command) (*app.Application, error) {
	return app.NewApplication(cmd.Context(), app.NewConfig(debug, !debug, configPath))
}

func newFormatter(cmd *cobra.Command, output string) (formatting.Formatter, error) {
	format, err := formatting.ParseFormat(output)
	if err != nil {
		return nil, err
	}
	return formatting.New(formatting.Options{Format: format, Output: cmd.OutOrStdout()}), nil
}
