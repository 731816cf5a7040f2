package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/optifi/internal/domain"
	"github.com/dvloznov/optifi/internal/infra/memstore"
	"github.com/dvloznov/optifi/internal/pipeline"
	"github.com/dvloznov/optifi/internal/pipeline/mocks"
	"github.com/dvloznov/optifi/internal/store"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func juneWindow(t *testing.T) domain.DateRange {
	t.Helper()
	w, err := domain.ParseDateRange("2024-06-01", "2024-06-30")
	require.NoError(t, err)
	return w
}

func seededStore() *memstore.Store {
	s := memstore.New()
	s.Seed(
		[]domain.SalesRecord{
			{Date: date("2024-06-01"), Price: domain.ParseAmount("5.00")},
			{Date: date("2024-06-01"), Price: domain.ParseAmount("3.50")},
			{Date: date("2024-06-02"), Price: domain.ParseAmount("20")},
		},
		[]domain.LedgerEntry{
			{Date: date("2024-06-01"), Category: "Rent", Supplier: "Main St Properties LLC", Amount: domain.ParseAmount("100.00")},
			{Date: date("2024-06-01"), Category: domain.SalesRevenueCategory, Supplier: "Square", Amount: domain.ParseAmount("8.50")},
			{Date: date("2024-06-02"), Category: "Supplies", Supplier: "Sysco", Amount: domain.ParseAmount("42.10")},
		},
	)
	return s
}

func TestSync_WritesBatchAndRecordsRun(t *testing.T) {
	ctx := context.Background()
	s := seededStore()

	result, err := pipeline.Sync(ctx, s, juneWindow(t), pipeline.Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.DepositCount)
	assert.Equal(t, 2, result.WithdrawalCount)
	assert.Equal(t, 4, result.Written)
	assert.Nil(t, result.Failed)
	assert.Empty(t, result.Pending())
	assert.NotEmpty(t, result.RunID)

	rows, err := s.ListBankTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	run, ok := s.SyncRun(result.RunID)
	require.True(t, ok)
	assert.Equal(t, store.RunStatusSucceeded, run.Status)
	assert.Equal(t, 4, run.RowsWritten)
	assert.Equal(t, "2024-06-01", run.WindowStart)
}

func TestSync_RerunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := seededStore()
	window := juneWindow(t)

	_, err := pipeline.Sync(ctx, s, window, pipeline.Options{})
	require.NoError(t, err)
	first, err := s.ListBankTransactions(ctx)
	require.NoError(t, err)

	_, err = pipeline.Sync(ctx, s, window, pipeline.Options{})
	require.NoError(t, err)
	second, err := s.ListBankTransactions(ctx)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Key(), second[i].Key())
	}
}

func TestSync_StopsAtFirstFailedUpsert(t *testing.T) {
	ctx := context.Background()
	s := seededStore()
	cause := errors.New("connection reset")
	s.InjectFaults(memstore.Faults{FailUpsertAt: 2, UpsertErr: cause})

	result, err := pipeline.Sync(ctx, s, juneWindow(t), pipeline.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)

	var we *pipeline.WriteError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, 1, we.Index)

	require.NotNil(t, result)
	assert.Equal(t, 1, result.Written)
	require.NotNil(t, result.Failed)
	assert.Equal(t, we.Row.Key(), result.Failed.Key())
	assert.Len(t, result.Pending(), 3)

	rows, err := s.ListBankTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "rows before the failure stay written")

	run, ok := s.SyncRun(result.RunID)
	require.True(t, ok)
	assert.Equal(t, store.RunStatusFailed, run.Status)
	assert.Equal(t, 1, run.RowsWritten)
	assert.Contains(t, run.ErrorMessage, "connection reset")
}

func TestSync_AtomicFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	s := seededStore()
	s.InjectFaults(memstore.Faults{FailUpsertAt: 3})

	result, err := pipeline.Sync(ctx, s, juneWindow(t), pipeline.Options{Atomic: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, memstore.ErrInjected)
	assert.Equal(t, 0, result.Written)
	require.NotNil(t, result.Failed)
	assert.Len(t, result.Pending(), 4)

	rows, err := s.ListBankTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSync_FetchFailure(t *testing.T) {
	tests := []struct {
		name       string
		faults     memstore.Faults
		wantSource string
	}{
		{name: "sales", faults: memstore.Faults{SalesErr: errors.New("timeout")}, wantSource: pipeline.SourceSales},
		{name: "ledger", faults: memstore.Faults{LedgerErr: errors.New("timeout")}, wantSource: pipeline.SourceLedger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := seededStore()
			s.InjectFaults(tt.faults)

			result, err := pipeline.Sync(ctx, s, juneWindow(t), pipeline.Options{})
			require.Error(t, err)

			var fe *pipeline.FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.wantSource, fe.Source)
			assert.Equal(t, 0, result.Written)

			rows, err := s.ListBankTransactions(ctx)
			require.NoError(t, err)
			assert.Empty(t, rows)
		})
	}
}

func TestSync_DryRunDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	s := seededStore()

	result, err := pipeline.Sync(ctx, s, juneWindow(t), pipeline.Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Empty(t, result.RunID)
	assert.Len(t, result.Planned, 4)
	assert.Equal(t, 0, result.Written)

	rows, err := s.ListBankTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSync_InvalidWindow(t *testing.T) {
	s := seededStore()
	window := domain.DateRange{Start: date("2024-06-30"), End: date("2024-06-01")}

	result, err := pipeline.Sync(context.Background(), s, window, pipeline.Options{})
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)
	assert.Nil(t, result)
}

func TestSync_UpsertsSequentiallyInBatchOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	window := juneWindow(t)
	m := mocks.NewMockStore(ctrl)

	m.EXPECT().QuerySalesByDateRange(gomock.Any(), window).Return([]domain.SalesRecord{
		{Date: date("2024-06-01"), Price: domain.ParseAmount("5.00")},
		{Date: date("2024-06-01"), Price: domain.ParseAmount("3.50")},
	}, nil)
	m.EXPECT().QueryLedgerByDateRange(gomock.Any(), window, domain.SalesRevenueCategory).Return([]domain.LedgerEntry{
		{Date: date("2024-06-01"), Category: "Rent", Supplier: "Main St Properties LLC", Amount: domain.ParseAmount("100.00")},
		{Date: date("2024-06-02"), Category: "Rent", Supplier: "Never Written", Amount: domain.ParseAmount("1")},
	}, nil)

	var written []string
	record := func(_ context.Context, tx domain.BankTransaction) error {
		written = append(written, tx.Key().String())
		return nil
	}
	failure := errors.New("unique violation")
	gomock.InOrder(
		m.EXPECT().UpsertBankTransaction(gomock.Any(), gomock.Any()).DoAndReturn(record),
		m.EXPECT().UpsertBankTransaction(gomock.Any(), gomock.Any()).Return(failure),
	)

	result, err := pipeline.Sync(context.Background(), m, window, pipeline.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, []string{"2024-06-01|POS Settlement|8.50"}, written)
	assert.Equal(t, 1, result.Written)
	assert.Equal(t, "Main St Properties LLC", result.Failed.Description)
}

func TestSync_AtomicUnsupported(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := mocks.NewMockStore(ctrl)
	_, err := pipeline.Sync(context.Background(), m, juneWindow(t), pipeline.Options{Atomic: true})
	assert.ErrorIs(t, err, pipeline.ErrAtomicUnsupported)
}

func TestPrepare(t *testing.T) {
	state, err := pipeline.Prepare(context.Background(), seededStore(), juneWindow(t))
	require.NoError(t, err)

	assert.Len(t, state.Sales, 3)
	assert.Len(t, state.Ledger, 2, "revenue rows are excluded at the source")
	assert.Equal(t, 2, state.Revenue.Len())
	require.Len(t, state.Batch, 4)
	assert.Equal(t, domain.Deposit, state.Batch[0].Type)
	assert.Equal(t, domain.Deposit, state.Batch[1].Type)
	assert.Equal(t, domain.Withdrawal, state.Batch[2].Type)
	assert.Equal(t, 0, state.Written)
}
