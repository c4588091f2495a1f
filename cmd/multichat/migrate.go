package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roboricindustries/raycon-multichat/internal/config"
	"github.com/roboricindustries/raycon-multichat/internal/store"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				dsn, err := migrateDSN()
				if err != nil {
					return err
				}
				return store.MigrateUp(dsn)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				dsn, err := migrateDSN()
				if err != nil {
					return err
				}
				return store.MigrateDown(dsn)
			},
		},
	)
	return cmd
}

func migrateDSN() (string, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return cfg.Postgres.DSN(), nil
}
