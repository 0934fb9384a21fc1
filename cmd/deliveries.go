package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/givecrm/internal/formatter"
	"github.com/desertthunder/givecrm/internal/shared"
	"github.com/desertthunder/givecrm/internal/tasks"
	"github.com/urfave/cli/v3"
)

// DeliveriesList prints recent deliveries, newest first.
func (r *Runner) DeliveriesList(ctx context.Context, cmd *cli.Command) error {
	repo, closeFn, err := r.openDeliveries()
	if err != nil {
		return err
	}
	defer closeFn()

	deliveries, err := repo.List(deliveryCriteria(cmd))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]formatter.DeliveryView, 0, len(deliveries))
		for _, d := range deliveries {
			views = append(views, formatter.NewDeliveryView(d, false))
		}
		return r.writeJSON(views, true)
	}

	if len(deliveries) == 0 {
		r.writePlain("No deliveries recorded\n")
		return nil
	}

	data, err := formatter.ExportToText(deliveries)
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}

// DeliveriesExport writes the selected deliveries to a file.
func (r *Runner) DeliveriesExport(ctx context.Context, cmd *cli.Command) error {
	repo, closeFn, err := r.openDeliveries()
	if err != nil {
		return err
	}
	defer closeFn()

	deliveries, err := repo.List(deliveryCriteria(cmd))
	if err != nil {
		return err
	}

	path, err := formatter.WriteExport(cmd.String("format"), deliveries, cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("exported deliveries", "count", len(deliveries), "path", path)
	r.writePlain("✓ Exported %d deliveries to %s\n", len(deliveries), path)
	return nil
}

// DeliveriesReplay re-processes failed deliveries through the engine.
func (r *Runner) DeliveriesReplay(ctx context.Context, cmd *cli.Command) error {
	repo, closeFn, err := r.openDeliveries()
	if err != nil {
		return err
	}
	defer closeFn()

	opts := tasks.ReplayOpts{
		IDs:       cmd.StringSlice("id"),
		Limit:     cmd.Int("limit"),
		RateLimit: cmd.Float("rate"),
		Force:     cmd.Bool("force"),
	}

	r.writePlain("Replaying deliveries...\n\n")

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := r.drainProgress(progressCh)

	result, err := r.engine.Replay(ctx, progressCh, repo, opts)
	close(progressCh)
	<-done

	if result != nil {
		r.writePlain("\n")
		r.writePlainHeader("Replay Complete")
		r.writePlain("Total:     %d\n", result.Total)
		r.writePlain("Succeeded: %d\n", result.Succeeded)
		r.writePlain("Failed:    %d\n", result.Failed)
		r.writePlain("Skipped:   %d\n", result.Skipped)
	}
	return err
}

// DeliveriesPurge soft-deletes deliveries older than --older-than.
func (r *Runner) DeliveriesPurge(ctx context.Context, cmd *cli.Command) error {
	age := cmd.Duration("older-than")
	if age <= 0 {
		return fmt.Errorf("%w: --older-than must be positive", shared.ErrInvalidArgument)
	}

	repo, closeFn, err := r.openDeliveries()
	if err != nil {
		return err
	}
	defer closeFn()

	cutoff := time.Now().Add(-age)
	n, err := repo.Purge(cutoff)
	if err != nil {
		return err
	}

	r.logger.Info("purged deliveries", "count", n, "before", cutoff.Format(time.RFC3339))
	r.writePlain("✓ Purged %d deliveries received before %s\n", n, cutoff.Format(time.DateTime))
	return nil
}

func deliveryCriteria(cmd *cli.Command) map[string]any {
	criteria := map[string]any{}
	if status := cmd.String("status"); status != "" {
		criteria["status"] = status
	}
	if email := cmd.String("email"); email != "" {
		criteria["email"] = email
	}
	if txn := cmd.String("transaction"); txn != "" {
		criteria["transaction_id"] = txn
	}
	if limit := cmd.Int("limit"); limit > 0 {
		criteria["limit"] = limit
	}
	return criteria
}
