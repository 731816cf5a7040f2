package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/optifi/internal/domain"
	"github.com/dvloznov/optifi/internal/store"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("memstore: injected failure")

// Faults makes a Store fail on purpose.
type Faults struct {
	// SalesErr and LedgerErr fail the corresponding source read.
	SalesErr  error
	LedgerErr error

	// FailUpsertAt fails the Nth upsert call (1-based) with UpsertErr, or
	// ErrInjected when UpsertErr is nil. Zero disables the fault.
	FailUpsertAt int
	UpsertErr    error
}

// Store is an in-memory implementation of store.Repository.
// It is safe for concurrent use and enforces the natural-key uniqueness of
// bank transactions. Data is lost on restart.
type Store struct {
	mu sync.RWMutex

	sales  []domain.SalesRecord
	ledger []domain.LedgerEntry

	bank  []domain.BankTransaction
	index map[domain.NaturalKey]int

	runs map[string]*store.SyncRun

	faults      Faults
	upsertCalls int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		index: make(map[domain.NaturalKey]int),
		runs:  make(map[string]*store.SyncRun),
	}
}

// Seed appends source rows.
func (s *Store) Seed(sales []domain.SalesRecord, ledger []domain.LedgerEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sales = append(s.sales, sales...)
	s.ledger = append(s.ledger, ledger...)
}

// InjectFaults replaces the active faults and resets the upsert counter.
func (s *Store) InjectFaults(f Faults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = f
	s.upsertCalls = 0
}

// QuerySalesByDateRange implements store.SourceReader.
func (s *Store) QuerySalesByDateRange(ctx context.Context, window domain.DateRange) ([]domain.SalesRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.faults.SalesErr != nil {
		return nil, s.faults.SalesErr
	}

	var out []domain.SalesRecord
	for _, r := range s.sales {
		if window.Contains(r.Date) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// QueryLedgerByDateRange implements store.SourceReader.
func (s *Store) QueryLedgerByDateRange(ctx context.Context, window domain.DateRange, excludeCategory string) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.faults.LedgerErr != nil {
		return nil, s.faults.LedgerErr
	}

	var out []domain.LedgerEntry
	for _, e := range s.ledger {
		if !window.Contains(e.Date) {
			continue
		}
		if excludeCategory != "" && e.Category == excludeCategory {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// UpsertBankTransaction implements store.BankTransactionWriter.
func (s *Store) UpsertBankTransaction(ctx context.Context, tx domain.BankTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injectedUpsertErr(); err != nil {
		return err
	}
	s.put(tx)
	return nil
}

// UpsertBankTransactionsAtomic implements store.AtomicUpserter. Either every
// row is applied or none is.
func (s *Store) UpsertBankTransactionsAtomic(ctx context.Context, txs []domain.BankTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, tx := range txs {
		if err := s.injectedUpsertErr(); err != nil {
			return &store.WriteError{Index: i, Row: tx, Err: err}
		}
	}
	for _, tx := range txs {
		s.put(tx)
	}
	return nil
}

func (s *Store) injectedUpsertErr() error {
	s.upsertCalls++
	if s.faults.FailUpsertAt == 0 || s.upsertCalls != s.faults.FailUpsertAt {
		return nil
	}
	if s.faults.UpsertErr != nil {
		return s.faults.UpsertErr
	}
	return ErrInjected
}

func (s *Store) put(tx domain.BankTransaction) {
	k := tx.Key()
	if i, ok := s.index[k]; ok {
		s.bank[i] = tx
		return
	}
	s.index[k] = len(s.bank)
	s.bank = append(s.bank, tx)
}

// ListBankTransactions implements store.FullTableReader.
func (s *Store) ListBankTransactions(ctx context.Context) ([]domain.BankTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.BankTransaction, len(s.bank))
	copy(out, s.bank)
	return out, nil
}

// ListLedgerEntries implements store.FullTableReader.
func (s *Store) ListLedgerEntries(ctx context.Context) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LedgerEntry, len(s.ledger))
	copy(out, s.ledger)
	return out, nil
}

// StartSyncRun implements store.RunRecorder.
func (s *Store) StartSyncRun(ctx context.Context, run *store.SyncRun) error {
	if run.RunID == "" {
		return fmt.Errorf("run ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	runCopy := *run
	s.runs[run.RunID] = &runCopy
	return nil
}

// MarkSyncRunSucceeded implements store.RunRecorder.
func (s *Store) MarkSyncRunSucceeded(ctx context.Context, runID string, rowsWritten int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("sync run not found: %s", runID)
	}
	now := time.Now().UTC()
	run.Status = store.RunStatusSucceeded
	run.RowsWritten = rowsWritten
	run.FinishedAt = &now
	return nil
}

// MarkSyncRunFailed implements store.RunRecorder. Unknown runs are ignored.
func (s *Store) MarkSyncRunFailed(ctx context.Context, runID string, rowsWritten int, runErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return
	}
	now := time.Now().UTC()
	run.Status = store.RunStatusFailed
	run.RowsWritten = rowsWritten
	run.ErrorMessage = store.TruncateError(runErr)
	run.FinishedAt = &now
}

// SyncRun returns a copy of a recorded run.
func (s *Store) SyncRun(runID string) (store.SyncRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return store.SyncRun{}, false
	}
	return *run, true
}

// Close implements store.Repository.
func (s *Store) Close() error {
	return nil
}

// Ensure Store implements the store interfaces.
var (
	_ store.Repository     = (*Store)(nil)
	_ store.AtomicUpserter = (*Store)(nil)
	_ store.RunRecorder    = (*Store)(nil)
)
