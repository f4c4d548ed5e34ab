package cli

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"muhabet/internal/config"
	"muhabet/internal/storage"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Driver     string
}

// NewRootCommand creates the muhabet command. Without a subcommand it serves.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "muhabet",
		Short: "Muhabet realtime group chat server",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// a missing .env is fine
			_ = godotenv.Load()
			if opts.ConfigPath == "" {
				opts.ConfigPath = os.Getenv("MUHABET_CONFIG")
			}
			if opts.Driver == "" {
				opts.Driver = os.Getenv("MUHABET_DB")
			}
			if opts.Driver == "" {
				opts.Driver = "sqlite3"
			}
			return nil
		},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config.json (default $MUHABET_CONFIG or ./config.json)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "db", "", "database driver: sqlite3 or mysql (default $MUHABET_DB or sqlite3)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))

	return cmd
}

// openDatabase loads config, connects to the selected driver and migrates the schema.
func openDatabase(opts *RootOptions) (*config.Config, *sql.DB, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log.Printf("dbType: %s", opts.Driver)
	db, err := storage.Open(opts.Driver, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := storage.Migrate(db, opts.Driver); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	return cfg, db, nil
}
