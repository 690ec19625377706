package cmd

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"credbroker/internal/config"
	"credbroker/internal/store"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Creates the credential store schema or upgrades it to the latest version.
serve applies migrations on startup as well; this command is for running them
ahead of a rollout. No secret material is needed.`,
		Args: cobra.NoArgs,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = fmt.Sprintf(" Migrating %s database...", cfg.Database.Driver)
	s.Writer = cmd.ErrOrStderr()
	s.Start()

	db, err := store.Open(cmd.Context(), cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		s.FinalMSG = text.FgRed.Sprint("Migration failed") + "\n"
		s.Stop()
		return err
	}
	defer func() { _ = db.Close() }()

	version, err := store.NewMigrator(db).CurrentVersion(cmd.Context())
	s.Stop()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Schema is at version %d\n", version)
	return nil
}
