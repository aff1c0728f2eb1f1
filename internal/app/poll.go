package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"enteliwatch/internal/poller"
	"enteliwatch/internal/storage"
)

// Poll executes a single snapshot tick immediately, persisting it when
// a database is configured, and prints the collected values.
func (a *App) Poll(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	var snapshotStore storage.SnapshotStore
	if store != nil {
		snapshotStore = store
	}

	client := a.newGateway()
	p := poller.New(a.Config, nil, client, snapshotStore, nil, a.Logger)

	bucket := time.Now().UTC()
	if a.Config.Scheduler.AlignToBucket && a.Config.Scheduler.Interval > 0 {
		bucket = bucket.Truncate(a.Config.Scheduler.Interval)
	}

	if err := p.ProcessBucket(ctx, bucket); err != nil {
		return fmt.Errorf("poll failed: %w", err)
	}

	fmt.Fprintf(os.Stdout, "snapshot recorded for bucket %s\n", bucket.Format(time.RFC3339))
	return nil
}

// Show prints recent persisted snapshots.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("database not configured; cannot show snapshots")
	}
	if closeStore != nil {
		defer closeStore()
	}

	snapshots, err := store.ListRecentSnapshots(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		fmt.Fprintln(os.Stdout, "no snapshots found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tTemp\tSetpoint\tMode\tPeak\tFan\tStatus")

	for _, snapshot := range snapshots {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			snapshot.Bucket.UTC().Format(time.RFC3339),
			formatFloatPtr(snapshot.Temperature),
			formatSetpoint(snapshot),
			formatStringPtr(snapshot.SystemMode),
			formatBoolPtr(snapshot.PeakSavings),
			formatBoolPtr(snapshot.FanStatus),
			snapshot.Status,
		)
	}

	return writer.Flush()
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func formatSetpoint(snapshot storage.PointSnapshot) string {
	if snapshot.ZoneSetpoint != nil {
		return fmt.Sprintf("%.1f", *snapshot.ZoneSetpoint)
	}
	if snapshot.HeatingSetpoint != nil || snapshot.CoolingSetpoint != nil {
		return fmt.Sprintf("%s/%s", formatFloatPtr(snapshot.HeatingSetpoint), formatFloatPtr(snapshot.CoolingSetpoint))
	}
	return "-"
}

func formatStringPtr(v *string) string {
	if v == nil {
		return "-"
	}
	return *v
}

func formatBoolPtr(v *bool) string {
	if v == nil {
		return "-"
	}
	if *v {
		return "on"
	}
	return "off"
}
