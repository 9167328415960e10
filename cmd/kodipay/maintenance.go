package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/seeding"
)

const maintenanceTimeout = 5 * time.Minute

// legacyRoles were written by earlier clients before landlord existed.
var legacyRoles = []string{"owner", "user"}

// withStack opens the application, runs fn and closes everything again.
func withStack(fn func(ctx context.Context, s *stack) error) error {
	application, err := bootstrap()
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
	defer cancel()
	return fn(ctx, newStack(application))
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo landlord, tenant, property and bill",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(func(ctx context.Context, s *stack) error {
				return seeding.SeedDemoData(ctx, seeding.Deps{
					Users:      s.repos.users,
					Properties: s.properties,
					Tenants:    s.tenants,
					Ledger:     s.ledger,
				})
			})
		},
	}
}

func cleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove stale data",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "tokens",
		Short: "Delete expired refresh and password-reset tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(func(ctx context.Context, s *stack) error {
				if err := s.cleanup.CleanupDaily(ctx); err != nil {
					return err
				}
				fmt.Println("Expired tokens removed")
				return nil
			})
		},
	})

	var yes bool
	nonLandlords := &cobra.Command{
		Use:   "non-landlords",
		Short: "Delete users that are not landlords or admins and have no tenant record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(func(ctx context.Context, s *stack) error {
				n, err := s.repos.users.CountUnlinkedNonLandlords(ctx)
				if err != nil {
					return err
				}
				if !yes {
					fmt.Printf("%d user(s) would be deleted; re-run with --yes to delete them\n", n)
					return nil
				}
				deleted, err := s.repos.users.DeleteUnlinkedNonLandlords(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Deleted %d user(s)\n", deleted)
				return nil
			})
		},
	}
	nonLandlords.Flags().BoolVar(&yes, "yes", false, "actually delete instead of reporting a count")
	cmd.AddCommand(nonLandlords)

	return cmd
}

func rolesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "User role maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Rewrite legacy owner/user roles to landlord",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(func(ctx context.Context, s *stack) error {
				var total int64
				for _, from := range legacyRoles {
					n, err := s.repos.users.RenameRole(ctx, from, string(models.RoleLandlord))
					if err != nil {
						return fmt.Errorf("rename role %q: %w", from, err)
					}
					total += n
				}
				fmt.Printf("Updated %d user(s)\n", total)
				return nil
			})
		},
	})
	return cmd
}

func propertiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "properties",
		Short: "Property data maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "backfill",
		Short: "Fill in missing address and rent defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(func(ctx context.Context, s *stack) error {
				n, err := s.repos.properties.BackfillDefaults(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Backfilled %d propert(ies)\n", n)
				return nil
			})
		},
	})
	return cmd
}
