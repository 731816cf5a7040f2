package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/optifi/internal/domain"
	"github.com/dvloznov/optifi/internal/logger"
	"github.com/dvloznov/optifi/internal/store"
	"golang.org/x/sync/errgroup"
)

// Step 1: FetchSourcesStep reads the sales and ledger windows concurrently.
type FetchSourcesStep struct {
	Source store.SourceReader
}

func (s *FetchSourcesStep) Execute(ctx context.Context, state *PipelineState) error {
	var (
		sales  []domain.SalesRecord
		ledger []domain.LedgerEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.Source.QuerySalesByDateRange(gctx, state.Window)
		if err != nil {
			return &FetchError{Source: SourceSales, Err: err}
		}
		sales = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.Source.QueryLedgerByDateRange(gctx, state.Window, domain.SalesRevenueCategory)
		if err != nil {
			return &FetchError{Source: SourceLedger, Err: err}
		}
		ledger = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	state.Sales = sales
	state.Ledger = ledger

	log := logger.FromContext(ctx)
	log.Debug().
		Int("sales", len(sales)).
		Int("ledger", len(ledger)).
		Msg("Fetched source rows")
	return nil
}

// Step 2: AggregateRevenueStep folds sales into one deposit per date.
type AggregateRevenueStep struct{}

func (s *AggregateRevenueStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Revenue = AggregateRevenue(state.Sales, state.Window)
	state.Deposits = DepositsFromRevenue(state.Revenue)
	return nil
}

// Step 3: NormalizeLedgerStep maps expense rows to withdrawals.
type NormalizeLedgerStep struct{}

func (s *NormalizeLedgerStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Withdrawals = NormalizeLedger(state.Ledger, state.Window)
	return nil
}

// Step 4: DeduplicateStep builds the write-set.
type DeduplicateStep struct{}

func (s *DeduplicateStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Batch = BuildBatch(state.Deposits, state.Withdrawals)

	dropped := len(state.Deposits) + len(state.Withdrawals) - len(state.Batch)
	if dropped > 0 {
		log := logger.FromContext(ctx)
		log.Warn().
			Int("dropped", dropped).
			Msg("Duplicate natural keys collapsed")
	}
	return nil
}

// Step 5: UpsertStep writes the batch one row at a time, stopping at the first
// failure. With Atomic set the whole batch goes through the store's
// transactional path instead.
type UpsertStep struct {
	Writer store.BankTransactionWriter
	Atomic bool
}

func (s *UpsertStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Atomic {
		return s.executeAtomic(ctx, state)
	}

	log := logger.FromContext(ctx)
	for i, row := range state.Batch {
		if err := ctx.Err(); err != nil {
			row := row
			state.Failed = &row
			return &WriteError{Index: i, Row: row, Err: err}
		}
		if err := s.Writer.UpsertBankTransaction(ctx, row); err != nil {
			row := row
			state.Failed = &row
			log.Error().Err(err).
				Int("index", i).
				Str("key", row.Key().String()).
				Msg("Upsert failed")
			return &WriteError{Index: i, Row: row, Err: err}
		}
		state.Written++
	}
	return nil
}

func (s *UpsertStep) executeAtomic(ctx context.Context, state *PipelineState) error {
	atomic, ok := s.Writer.(store.AtomicUpserter)
	if !ok {
		return ErrAtomicUnsupported
	}
	if err := atomic.UpsertBankTransactionsAtomic(ctx, state.Batch); err != nil {
		state.Written = 0
		var we *WriteError
		if errors.As(err, &we) {
			row := we.Row
			state.Failed = &row
			return err
		}
		return fmt.Errorf("atomic upsert: %w", err)
	}
	state.Written = len(state.Batch)
	return nil
}

// Pipeline orchestrates the execution of pipeline steps.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewPreparePipeline reads and transforms without writing.
func NewPreparePipeline(src store.SourceReader) *Pipeline {
	return NewPipeline(
		&FetchSourcesStep{Source: src},
		&AggregateRevenueStep{},
		&NormalizeLedgerStep{},
		&DeduplicateStep{},
	)
}

// NewSyncPipeline creates the standard 5-step bank-transaction sync.
func NewSyncPipeline(st Store, atomic bool) *Pipeline {
	return NewPipeline(
		&FetchSourcesStep{Source: st},
		&AggregateRevenueStep{},
		&NormalizeLedgerStep{},
		&DeduplicateStep{},
		&UpsertStep{Writer: st, Atomic: atomic},
	)
}
