package pipeline

import (
	"context"

	"github.com/dvloznov/optifi/internal/domain"
	"github.com/dvloznov/optifi/internal/store"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/dvloznov/optifi/internal/pipeline Store

// Store is what a sync run needs from the persistence layer.
type Store interface {
	store.SourceReader
	store.BankTransactionWriter
}

// PipelineStep represents a single step in the bank-transaction sync.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Window domain.DateRange

	Sales  []domain.SalesRecord
	Ledger []domain.LedgerEntry

	Revenue     DailyRevenue
	Deposits    []domain.BankTransaction
	Withdrawals []domain.BankTransaction

	// Batch is the deduplicated write-set, deposits first.
	Batch []domain.BankTransaction

	Written int
	Failed  *domain.BankTransaction
}
