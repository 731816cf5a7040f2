package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dvloznov/optifi/internal/domain"
	"github.com/dvloznov/optifi/internal/logger"
	"github.com/dvloznov/optifi/internal/store"
	"github.com/google/uuid"
)

// Options tunes a sync run.
type Options struct {
	// DryRun computes the write-set without writing it or recording a run.
	DryRun bool

	// Atomic applies the whole batch in one store transaction.
	Atomic bool
}

// SyncResult describes what a sync run planned and wrote.
type SyncResult struct {
	RunID  string           `json:"run_id,omitempty"`
	Window domain.DateRange `json:"-"`

	DepositCount    int `json:"deposits"`
	WithdrawalCount int `json:"withdrawals"`

	// Planned is the deduplicated write-set in write order.
	Planned []domain.BankTransaction `json:"planned"`

	// Written counts rows the store acknowledged. Rows before this index are
	// persisted; Planned[Written] failed when Failed is set.
	Written int                     `json:"written"`
	Failed  *domain.BankTransaction `json:"failed,omitempty"`
	DryRun  bool                    `json:"dry_run"`
}

// Pending returns the planned rows that were not written.
func (r *SyncResult) Pending() []domain.BankTransaction {
	if r.Written >= len(r.Planned) {
		return nil
	}
	return r.Planned[r.Written:]
}

// Prepare reads both sources for window and returns the deduplicated
// write-set without touching the bank table.
func Prepare(ctx context.Context, src store.SourceReader, window domain.DateRange) (*PipelineState, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	state := &PipelineState{Window: window}
	if err := NewPreparePipeline(src).Execute(ctx, state); err != nil {
		return state, err
	}
	return state, nil
}

// Sync recomputes the bank view for window and upserts it. The returned result
// is non-nil whenever the window is valid, including on failure, so callers can
// see which rows were written before the run stopped.
func Sync(ctx context.Context, st Store, window domain.DateRange, opts Options) (*SyncResult, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if opts.Atomic && !opts.DryRun {
		if _, ok := st.(store.AtomicUpserter); !ok {
			return nil, ErrAtomicUnsupported
		}
	}

	result := &SyncResult{Window: window, DryRun: opts.DryRun}
	log := logger.FromContext(ctx).With().Str("window", window.String()).Logger()

	if opts.DryRun {
		state, err := Prepare(ctx, st, window)
		fillResult(result, state)
		if err != nil {
			return result, err
		}
		log.Info().Int("planned", len(result.Planned)).Msg("Dry run complete")
		return result, nil
	}

	result.RunID = uuid.NewString()
	log = log.With().Str("run_id", result.RunID).Logger()
	ctx = logger.WithContext(ctx, log)

	recorder, _ := st.(store.RunRecorder)
	if recorder != nil {
		run := &store.SyncRun{
			RunID:       result.RunID,
			WindowStart: window.Start.String(),
			WindowEnd:   window.End.String(),
			StartedAt:   time.Now().UTC(),
			Status:      store.RunStatusRunning,
		}
		if err := recorder.StartSyncRun(ctx, run); err != nil {
			return result, fmt.Errorf("Sync: start run: %w", err)
		}
	}

	state := &PipelineState{Window: window}
	err := NewSyncPipeline(st, opts.Atomic).Execute(ctx, state)
	fillResult(result, state)
	if err != nil {
		log.Error().Err(err).
			Int("written", result.Written).
			Int("planned", len(result.Planned)).
			Msg("Sync failed")
		if recorder != nil {
			recorder.MarkSyncRunFailed(ctx, result.RunID, result.Written, err)
		}
		return result, err
	}

	if recorder != nil {
		if err := recorder.MarkSyncRunSucceeded(ctx, result.RunID, result.Written); err != nil {
			return result, fmt.Errorf("Sync: mark run succeeded: %w", err)
		}
	}

	log.Info().
		Int("deposits", result.DepositCount).
		Int("withdrawals", result.WithdrawalCount).
		Int("written", result.Written).
		Msg("Sync complete")
	return result, nil
}

func fillResult(result *SyncResult, state *PipelineState) {
	if state == nil {
		return
	}
	result.DepositCount = len(state.Deposits)
	result.WithdrawalCount = len(state.Withdrawals)
	result.Planned = state.Batch
	result.Written = state.Written
	result.Failed = state.Failed
}

// RecentView returns up to limit rows ordered newest first. Rows on the same
// date keep their input order. A non-positive limit returns every row.
func RecentView(rows []domain.BankTransaction, limit int) []domain.BankTransaction {
	out := make([]domain.BankTransaction, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		return out[j].Date.Before(out[i].Date)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
