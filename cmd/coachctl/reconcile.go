package main

import (
	"coachshare/backend/internal/service"
	"context"

	"github.com/samber/do"
	"github.com/spf13/cobra"
)

type reconcileRun func(ctx context.Context, svc service.ReconcileService, dryRun bool) (any, error)

func newReconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair relationship drift and purge orphaned workout logs",
		Long: `Reconciliation procedures are idempotent. Run with --dry-run first to see
what would change; the report is printed as JSON.`,
	}

	cmd.AddCommand(reconcileSubcommand("relationships",
		"Backfill relationships implied by workout logs",
		func(ctx context.Context, svc service.ReconcileService, dryRun bool) (any, error) {
			return svc.RepairRelationships(ctx, dryRun)
		}))
	cmd.AddCommand(reconcileSubcommand("sweep",
		"Make every relationship symmetric and drop dangling references",
		func(ctx context.Context, svc service.ReconcileService, dryRun bool) (any, error) {
			return svc.Sweep(ctx, dryRun)
		}))
	cmd.AddCommand(reconcileSubcommand("orphans",
		"Delete workout logs whose regimen no longer exists",
		func(ctx context.Context, svc service.ReconcileService, dryRun bool) (any, error) {
			return svc.PurgeOrphans(ctx, dryRun)
		}))
	return cmd
}

func reconcileSubcommand(use, short string, run reconcileRun) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(inj *do.Injector) error {
				svc, err := do.Invoke[service.ReconcileService](inj)
				if err != nil {
					return err
				}
				report, err := run(cmd.Context(), svc, dryRun)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	return cmd
}
