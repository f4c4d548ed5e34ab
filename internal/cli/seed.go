package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"muhabet/internal/store"
)

// NewSeedCommand creates the seed command, which provisions the GLOBAL channel.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "seed",
		Short:        "Create the GLOBAL channel if it does not exist",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDatabase(rootOpts)
			if err != nil {
				return err
			}
			defer db.Close()

			id, created, err := store.NewService(db, rootOpts.Driver).EnsureGlobalChannel(cmd.Context())
			if err != nil {
				return fmt.Errorf("seed global channel: %w", err)
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "created GLOBAL channel %s\n", id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "GLOBAL channel already exists: %s\n", id)
			}
			return nil
		},
	}
}
