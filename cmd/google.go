package cmd

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"credbroker/internal/formatting"
	"credbroker/internal/oauth"
)

type tenantFlags struct {
	workspaceID string
	userID      string
}

func (f *tenantFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.workspaceID, "workspace", "", "Slack workspace ID")
	cmd.Flags().StringVar(&f.userID, "user", "", "Slack user ID")
	_ = cmd.MarkFlagRequired("workspace")
	_ = cmd.MarkFlagRequired("user")
}

func newGoogleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "google",
		Short: "Manage Google Sheets integrations",
	}
	cmd.AddCommand(newGoogleRefreshCmd(), newGoogleRevokeCmd(), newGoogleConfigureCmd())
	return cmd
}

func newGoogleRefreshCmd() *cobra.Command {
	var (
		tenant tenantFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Force a Google token refresh for a user",
		Long: `Refreshes the user's Google access token and stores the result. The access
token itself is never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := newFormatter(cmd, output)
			if err != nil {
				return err
			}

			application, err := openApplication(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = application.Close() }()

			tok, err := application.Services().Google.Refresh(cmd.Context(), tenant.workspaceID, tenant.userID)
			if err != nil {
				return err
			}

			return formatter.FormatToken(formatting.TokenView{
				WorkspaceID: tenant.workspaceID,
				UserID:      tenant.userID,
				AccessToken: oauth.NewRedactedToken(tok.AccessToken),
				Expiry:      tok.Expiry,
			})
		},
	}
	tenant.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table, json or yaml")
	return cmd
}

func newGoogleRevokeCmd() *cobra.Command {
	var tenant tenantFlags

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a user's Google grant and delete the stored credentials",
		Long: `Revokes the grant at Google and deletes the stored integration. The local
credentials are deleted even when Google cannot be reached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := openApplication(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = application.Close() }()

			s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			s.Suffix = " Revoking Google access..."
			s.Writer = cmd.ErrOrStderr()
			s.Start()

			err = application.Services().Google.Revoke(cmd.Context(), tenant.workspaceID, tenant.userID)
			if err != nil {
				s.FinalMSG = text.FgRed.Sprint("Revocation failed") + "\n"
			}
			s.Stop()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Google integration for workspace %s user %s removed\n", tenant.workspaceID, tenant.userID)
			return nil
		},
	}
	tenant.register(cmd)
	return cmd
}

func newGoogleConfigureCmd() *cobra.Command {
	var (
		tenant        tenantFlags
		spreadsheetID string
	)

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Attach a spreadsheet to an authorized integration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := openApplication(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = application.Close() }()

			if err := application.Services().Google.Configure(cmd.Context(), tenant.workspaceID, tenant.userID, spreadsheetID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Spreadsheet %s configured for workspace %s user %s\n", spreadsheetID, tenant.workspaceID, tenant.userID)
			return nil
		},
	}
	tenant.register(cmd)
	cmd.Flags().StringVar(&spreadsheetID, "spreadsheet", "", "Google spreadsheet ID")
	_ = cmd.MarkFlagRequired("spreadsheet")
	return cmd
}
