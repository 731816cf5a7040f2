package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/optifi/internal/domain"
)

// SourceReader reads the two ledgers the bank view is derived from.
type SourceReader interface {
	// QuerySalesByDateRange returns POS records dated inside the inclusive window.
	QuerySalesByDateRange(ctx context.Context, window domain.DateRange) ([]domain.SalesRecord, error)

	// QueryLedgerByDateRange returns ledger rows inside the window whose category
	// is not excludeCategory. An empty excludeCategory disables the filter.
	QueryLedgerByDateRange(ctx context.Context, window domain.DateRange, excludeCategory string) ([]domain.LedgerEntry, error)
}

// BankTransactionWriter persists bank transactions.
type BankTransactionWriter interface {
	// UpsertBankTransaction inserts the row, or replaces the stored row that
	// shares its (date, description, amount) key.
	UpsertBankTransaction(ctx context.Context, tx domain.BankTransaction) error
}

// AtomicUpserter is implemented by stores that can apply a batch of single-row
// upserts inside one transaction.
type AtomicUpserter interface {
	UpsertBankTransactionsAtomic(ctx context.Context, txs []domain.BankTransaction) error
}

// FullTableReader reads entire tables for the match oracle.
type FullTableReader interface {
	ListBankTransactions(ctx context.Context) ([]domain.BankTransaction, error)
	ListLedgerEntries(ctx context.Context) ([]domain.LedgerEntry, error)
}

// RunRecorder keeps an audit trail of sync runs.
type RunRecorder interface {
	StartSyncRun(ctx context.Context, run *SyncRun) error
	MarkSyncRunSucceeded(ctx context.Context, runID string, rowsWritten int) error
	MarkSyncRunFailed(ctx context.Context, runID string, rowsWritten int, runErr error)
}

// Repository is everything a backend provides.
type Repository interface {
	SourceReader
	BankTransactionWriter
	FullTableReader
	Close() error
}

// Sync run statuses.
const (
	RunStatusRunning   = "RUNNING"
	RunStatusSucceeded = "SUCCESS"
	RunStatusFailed    = "FAILED"
)

// MaxErrorMessageLen caps the error text stored on a failed run.
const MaxErrorMessageLen = 2000

// SyncRun is one execution of the bank-transaction sync.
type SyncRun struct {
	RunID        string     `json:"run_id"`
	WindowStart  string     `json:"window_start"`
	WindowEnd    string     `json:"window_end"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Status       string     `json:"status"`
	RowsWritten  int        `json:"rows_written"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// TruncateError renders err for storage, capped at MaxErrorMessageLen.
func TruncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > MaxErrorMessageLen {
		msg = msg[:MaxErrorMessageLen]
	}
	return msg
}

// WriteError reports the bank transaction whose upsert failed. Err is the
// store's error, unmodified.
type WriteError struct {
	Index int
	Row   domain.BankTransaction
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("upsert bank transaction %d (%s): %v", e.Index, e.Row.Key(), e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
