package cmd

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	"credbroker/internal/crypto"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an encryption key and a state signing secret",
		Long: `Prints a fresh 32-byte encryption key (hex) and a random state signing
secret as environment assignments, ready to be stored in a secret manager.

Rotating the encryption key makes every stored credential unreadable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return err
			}

			secret := make([]byte, 32)
			if _, err := rand.Read(secret); err != nil {
				return fmt.Errorf("failed to generate state secret: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "CREDBROKER_ENCRYPTION_KEY=%s\n", key)
			fmt.Fprintf(out, "CREDBROKER_STATE_SECRET=%s\n", base64.RawURLEncoding.EncodeToString(secret))
			return nil
		},
	}
}
