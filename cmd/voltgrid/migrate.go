package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voltgrid/voltgrid/pkg/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Apply the VoltGrid schema to the configured PostgreSQL database.

The schema is idempotent; running migrate against an up-to-date
database is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
			fmt.Println("Dry run, schema that would be applied:")
			fmt.Print(repository.Schema, "\n")
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		fmt.Printf("Applying schema to %s:%d/%s...\n",
			cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

		repos, err := repository.Open(ctx, cfg.Database, cfg.Pipeline.HistoryEvery)
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}
		defer func() { _ = repos.Close() }()

		if err := repos.Migrate(ctx); err != nil {
			return err
		}

		fmt.Println("✓ Schema applied")
		return nil
	},
}

func init() {
	migrateCmd.Flags().String("config", "", "Path to YAML config file")
	migrateCmd.Flags().Bool("dry-run", false, "Print the schema without applying it")
}
