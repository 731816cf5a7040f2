package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/optifi/internal/logger"
	"github.com/dvloznov/optifi/internal/store"
)

// StartSyncRunWithClient inserts a sync_runs row with status=RUNNING.
func StartSyncRunWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, run *store.SyncRun) error {
	q := client.Query(fmt.Sprintf(`
		INSERT %s (
			run_id,
			window_start,
			window_end,
			started_ts,
			status
		)
		VALUES (
			@run_id,
			@window_start,
			@window_end,
			@started_ts,
			@status
		)
	`, ds.Table(syncRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: run.RunID},
		{Name: "window_start", Value: run.WindowStart},
		{Name: "window_end", Value: run.WindowEnd},
		{Name: "started_ts", Value: run.StartedAt},
		{Name: "status", Value: store.RunStatusRunning},
	}

	return runDML(ctx, q, "StartSyncRun")
}

// MarkSyncRunFailedWithClient sets status=FAILED, finished_ts and error_message.
// Failures are logged, not returned, so the original error stays the one reported.
func MarkSyncRunFailedWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, runID string, rowsWritten int, runErr error) {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    rows_written = @rows_written,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, ds.Table(syncRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: store.RunStatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "rows_written", Value: rowsWritten},
		{Name: "error_message", Value: store.TruncateError(runErr)},
		{Name: "run_id", Value: runID},
	}

	if err := runDML(ctx, q, "MarkSyncRunFailed"); err != nil {
		log := logger.FromContext(ctx)
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkSyncRunFailed: update failed")
	}
}

// MarkSyncRunSucceededWithClient sets status=SUCCESS and finished_ts, clears error_message.
func MarkSyncRunSucceededWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, runID string, rowsWritten int) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    rows_written = @rows_written,
		    error_message = ""
		WHERE run_id = @run_id
	`, ds.Table(syncRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: store.RunStatusSucceeded},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "rows_written", Value: rowsWritten},
		{Name: "run_id", Value: runID},
	}

	return runDML(ctx, q, "MarkSyncRunSucceeded")
}

func runDML(ctx context.Context, q *bigquery.Query, op string) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("%s: running query: %w", op, err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("%s: waiting for job: %w", op, err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("%s: job error: %w", op, err)
	}

	return nil
}
