package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"credbroker/internal/app"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the OAuth callback server",
		Long: `Starts the HTTP server that handles the Slack install flow and the Google
Sheets authorization flow, plus /healthz and /metrics.

Secret material (encryption key, state secret, client secrets) is read once at
startup from the source configured under secrets: either CREDBROKER_* environment
variables or a Kubernetes Secret.

The server stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApplication(ctx, app.NewConfig(debug, false, configPath))
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() { _ = application.Close() }()

	return application.Run(ctx)
}
