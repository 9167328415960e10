package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ndunguuu01/kodipay/internal/config"
	"github.com/Ndunguuu01/kodipay/internal/migrations"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := openMigrator()
				if err != nil {
					return err
				}
				applied, err := m.Up()
				if err != nil {
					return err
				}
				if len(applied) == 0 {
					fmt.Println("Schema is up to date")
					return nil
				}
				fmt.Printf("Applied %d migration(s): %v\n", len(applied), applied)
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := openMigrator()
				if err != nil {
					return err
				}
				rows, err := m.Status()
				if err != nil {
					return err
				}
				for _, s := range rows {
					state := "pending"
					if s.Applied {
						state = "applied " + s.AppliedAt.Format("2006-01-02 15:04:05")
					}
					fmt.Fprintf(os.Stdout, "%s  %-12s %s\n", s.Version, s.Name, state)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := openMigrator()
				if err != nil {
					return err
				}
				version, err := m.Down()
				if err != nil {
					return err
				}
				if version == "" {
					fmt.Println("Nothing to roll back")
					return nil
				}
				fmt.Printf("Rolled back %s\n", version)
				return nil
			},
		},
	)
	return cmd
}

func openMigrator() (*migrations.Migrator, error) {
	cfg := config.LoadConfig()
	db, err := migrations.Open(cfg.DBUrl)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return migrations.NewMigrator(db, migrations.All()...), nil
}
