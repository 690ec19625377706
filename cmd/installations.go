package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"credbroker/internal/store"
)

func newInstallationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "installations",
		Aliases: []string{"installation", "inst"},
		Short:   "Inspect and remove Slack installations",
	}
	cmd.AddCommand(newInstallationsListCmd(), newInstallationsDeleteCmd())
	return cmd
}

func newInstallationsListCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored Slack installations",
		Long: `Lists every stored Slack installation. Tokens are never printed; the
TOKENS column only shows which kinds of token are present.`,
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

			installations, err := application.Services().Installations.List(cmd.Context())
			if err != nil {
				return err
			}
			return formatter.FormatInstallations(installations)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table, json or yaml")
	return cmd
}

func newInstallationsDeleteCmd() *cobra.Command {
	var q store.InstallationQuery

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a Slack installation",
		Long: `Deletes the stored installation for a team or, for org-wide installs, an
enterprise. Deleting an installation that does not exist succeeds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if q.TeamID == "" && q.EnterpriseID == "" {
				return fmt.Errorf("one of --team or --enterprise is required")
			}

			application, err := openApplication(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = application.Close() }()

			if err := application.Services().Installations.Delete(cmd.Context(), q); err != nil {
				return err
			}

			target := q.TeamID
			if target == "" {
				target = q.EnterpriseID
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Installation for %s deleted\n", target)
			return nil
		},
	}
	cmd.Flags().StringVar(&q.TeamID, "team", "", "Slack team ID")
	cmd.Flags().StringVar(&q.EnterpriseID, "enterprise", "", "Slack enterprise ID")
	return cmd
}
