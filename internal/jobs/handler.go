package jobs

import (
	"context"
	"fmt"

	"github.com/dvloznov/optifi/internal/domain"
	"github.com/dvloznov/optifi/internal/logger"
	"github.com/dvloznov/optifi/internal/pipeline"
)

// NewSyncHandler returns a handler that runs pipeline.Sync for each job.
func NewSyncHandler(st pipeline.Store) JobHandler {
	return func(ctx context.Context, job *SyncJob) error {
		window, err := domain.ParseDateRange(job.StartDate, job.EndDate)
		if err != nil {
			return fmt.Errorf("sync job %s: %w", job.JobID, err)
		}

		log := logger.FromContext(ctx)
		log.Info().
			Str("start_date", job.StartDate).
			Str("end_date", job.EndDate).
			Bool("dry_run", job.DryRun).
			Msg("Processing sync job")

		result, err := pipeline.Sync(ctx, st, window, pipeline.Options{DryRun: job.DryRun, Atomic: job.Atomic})
		if result != nil {
			job.RunID = result.RunID
			job.RowsWritten = result.Written
		}
		if err != nil {
			return err
		}

		log.Info().
			Str("run_id", job.RunID).
			Int("rows_written", job.RowsWritten).
			Msg("Sync job completed")
		return nil
	}
}
