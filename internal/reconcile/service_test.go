package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/optifi/internal/domain"
	"github.com/dvloznov/optifi/internal/gcsexport"
	"github.com/dvloznov/optifi/internal/infra/memstore"
	"github.com/dvloznov/optifi/internal/notionsync"
	"github.com/dvloznov/optifi/internal/oracle"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockMatcher struct {
	MatchFunc func(ctx context.Context, req oracle.Request) (*oracle.Partition, error)
}

func (m *MockMatcher) Match(ctx context.Context, req oracle.Request) (*oracle.Partition, error) {
	return m.MatchFunc(ctx, req)
}

type MockExporter struct {
	ExportPartitionFunc func(ctx context.Context, snap gcsexport.PartitionSnapshot) (string, error)
}

func (m *MockExporter) ExportPartition(ctx context.Context, snap gcsexport.PartitionSnapshot) (string, error) {
	return m.ExportPartitionFunc(ctx, snap)
}

type MockPublisher struct {
	PublishFunc func(ctx context.Context, entries []notionsync.Entry) (*notionsync.Result, error)
}

func (m *MockPublisher) Publish(ctx context.Context, entries []notionsync.Entry) (*notionsync.Result, error) {
	return m.PublishFunc(ctx, entries)
}

var (
	june1   = civil.Date{Year: 2024, Month: 6, Day: 1}
	rent    = domain.BankTransaction{Date: june1, Type: domain.Withdrawal, Description: "Main St Properties LLC", Amount: decimal.RequireFromString("-100"), Source: domain.SourceSystem}
	deposit = domain.BankTransaction{Date: june1, Type: domain.Deposit, Description: domain.POSSettlementDescription, Amount: decimal.RequireFromString("12.5"), Source: domain.SourceSystem}
)

func seededStore(t *testing.T) *memstore.Store {
	t.Helper()
	s := memstore.New()
	s.Seed(nil, []domain.LedgerEntry{{Date: june1, Category: "Rent", Supplier: "Main St Properties LLC", Amount: domain.ParseAmount("100")}})
	require.NoError(t, s.UpsertBankTransaction(context.Background(), rent))
	require.NoError(t, s.UpsertBankTransaction(context.Background(), deposit))
	return s
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestRun(t *testing.T) {
	s := seededStore(t)

	matcher := &MockMatcher{MatchFunc: func(ctx context.Context, req oracle.Request) (*oracle.Partition, error) {
		assert.Len(t, req.BankTransactions, 2)
		assert.Len(t, req.AppTransactions, 1)
		return &oracle.Partition{
			Matched:       []oracle.Pair{{Bank: mustJSON(t, rent), App: mustJSON(t, req.AppTransactions[0])}},
			UnmatchedBank: []json.RawMessage{mustJSON(t, deposit)},
			UnmatchedApp:  []json.RawMessage{},
		}, nil
	}}

	var exported gcsexport.PartitionSnapshot
	exporter := &MockExporter{ExportPartitionFunc: func(ctx context.Context, snap gcsexport.PartitionSnapshot) (string, error) {
		exported = snap
		return "gs://bucket/reconciliations/x.json", nil
	}}

	var published []notionsync.Entry
	publisher := &MockPublisher{PublishFunc: func(ctx context.Context, entries []notionsync.Entry) (*notionsync.Result, error) {
		published = entries
		return &notionsync.Result{Created: len(entries)}, nil
	}}

	svc := &Service{Tables: s, Matcher: matcher, Exporter: exporter, Publisher: publisher}
	res, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, res.RunID, exported.RunID)
	assert.Equal(t, 2, res.BankCount)
	assert.Equal(t, "gs://bucket/reconciliations/x.json", res.ExportURI)
	assert.Equal(t, 2, res.Published.Created)

	statuses := map[string]string{}
	for _, e := range published {
		statuses[e.Tx.Description] = e.Status
	}
	assert.Equal(t, notionsync.StatusMatched, statuses["Main St Properties LLC"])
	assert.Equal(t, notionsync.StatusUnmatched, statuses[domain.POSSettlementDescription])
}

func TestRun_OracleErrorPassesThrough(t *testing.T) {
	upstream := &oracle.StatusError{StatusCode: 429, Body: "quota"}
	svc := &Service{
		Tables:  seededStore(t),
		Matcher: &MockMatcher{MatchFunc: func(ctx context.Context, req oracle.Request) (*oracle.Partition, error) { return nil, upstream }},
	}

	res, err := svc.Run(context.Background())
	assert.Nil(t, res)

	var statusErr *oracle.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 429, statusErr.StatusCode)
}

func TestRun_ExportFailureKeepsPartition(t *testing.T) {
	svc := &Service{
		Tables: seededStore(t),
		Matcher: &MockMatcher{MatchFunc: func(ctx context.Context, req oracle.Request) (*oracle.Partition, error) {
			return &oracle.Partition{}, nil
		}},
		Exporter: &MockExporter{ExportPartitionFunc: func(ctx context.Context, snap gcsexport.PartitionSnapshot) (string, error) {
			return "", errors.New("bucket not found")
		}},
	}

	res, err := svc.Run(context.Background())
	assert.ErrorContains(t, err, "bucket not found")
	require.NotNil(t, res)
	assert.NotNil(t, res.Partition)
}

func TestRun_TableReadError(t *testing.T) {
	svc := &Service{Tables: failingTables{}, Matcher: &MockMatcher{}}

	_, err := svc.Run(context.Background())
	assert.ErrorContains(t, err, "list ledger entries")
}

type failingTables struct{}

func (failingTables) ListBankTransactions(ctx context.Context) ([]domain.BankTransaction, error) {
	return nil, nil
}

func (failingTables) ListLedgerEntries(ctx context.Context) ([]domain.LedgerEntry, error) {
	return nil, errors.New("table missing")
}

func TestStatusEntries_SkipsUndecodableItems(t *testing.T) {
	entries := StatusEntries(context.Background(), []domain.BankTransaction{rent}, &oracle.Partition{
		UnmatchedBank: []json.RawMessage{json.RawMessage(`"not an object"`)},
	})

	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Status)
}
