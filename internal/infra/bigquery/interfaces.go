package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/optifi/internal/domain"
	"github.com/dvloznov/optifi/internal/store"
)

// Repository is the BigQuery implementation of store.Repository. It holds a
// shared BigQuery client to avoid creating a new connection for each operation.
type Repository struct {
	client *bigquery.Client
	ds     Dataset
}

// NewRepository creates a repository for the given project and dataset.
func NewRepository(ctx context.Context, projectID, datasetID string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{
		client: client,
		ds:     Dataset{ProjectID: projectID, DatasetID: datasetID},
	}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// QuerySalesByDateRange delegates to QuerySalesByDateRangeWithClient with the shared client.
func (r *Repository) QuerySalesByDateRange(ctx context.Context, window domain.DateRange) ([]domain.SalesRecord, error) {
	return QuerySalesByDateRangeWithClient(ctx, r.client, r.ds, window)
}

// QueryLedgerByDateRange delegates to QueryLedgerByDateRangeWithClient with the shared client.
func (r *Repository) QueryLedgerByDateRange(ctx context.Context, window domain.DateRange, excludeCategory string) ([]domain.LedgerEntry, error) {
	return QueryLedgerByDateRangeWithClient(ctx, r.client, r.ds, window, excludeCategory)
}

// UpsertBankTransaction delegates to UpsertBankTransactionWithClient with the shared client.
func (r *Repository) UpsertBankTransaction(ctx context.Context, tx domain.BankTransaction) error {
	return UpsertBankTransactionWithClient(ctx, r.client, r.ds, tx)
}

// ListBankTransactions delegates to ListBankTransactionsWithClient with the shared client.
func (r *Repository) ListBankTransactions(ctx context.Context) ([]domain.BankTransaction, error) {
	return ListBankTransactionsWithClient(ctx, r.client, r.ds)
}

// ListLedgerEntries delegates to ListLedgerEntriesWithClient with the shared client.
func (r *Repository) ListLedgerEntries(ctx context.Context) ([]domain.LedgerEntry, error) {
	return ListLedgerEntriesWithClient(ctx, r.client, r.ds)
}

// StartSyncRun delegates to StartSyncRunWithClient with the shared client.
func (r *Repository) StartSyncRun(ctx context.Context, run *store.SyncRun) error {
	return StartSyncRunWithClient(ctx, r.client, r.ds, run)
}

// MarkSyncRunSucceeded delegates to MarkSyncRunSucceededWithClient with the shared client.
func (r *Repository) MarkSyncRunSucceeded(ctx context.Context, runID string, rowsWritten int) error {
	return MarkSyncRunSucceededWithClient(ctx, r.client, r.ds, runID, rowsWritten)
}

// MarkSyncRunFailed delegates to MarkSyncRunFailedWithClient with the shared client.
func (r *Repository) MarkSyncRunFailed(ctx context.Context, runID string, rowsWritten int, runErr error) {
	MarkSyncRunFailedWithClient(ctx, r.client, r.ds, runID, rowsWritten, runErr)
}

var (
	_ store.Repository  = (*Repository)(nil)
	_ store.RunRecorder = (*Repository)(nil)
)
