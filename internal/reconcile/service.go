package reconcile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dvloznov/optifi/internal/domain"
	"github.com/dvloznov/optifi/internal/gcsexport"
	"github.com/dvloznov/optifi/internal/logger"
	"github.com/dvloznov/optifi/internal/notionsync"
	"github.com/dvloznov/optifi/internal/oracle"
	"github.com/dvloznov/optifi/internal/store"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// PartitionExporter persists a reconciliation snapshot and returns where it went.
type PartitionExporter interface {
	ExportPartition(ctx context.Context, snap gcsexport.PartitionSnapshot) (string, error)
}

// StatusPublisher mirrors bank rows and their reconciliation status elsewhere.
type StatusPublisher interface {
	Publish(ctx context.Context, entries []notionsync.Entry) (*notionsync.Result, error)
}

// Service reconciles the stored bank view against the full ledger.
// Exporter and Publisher are optional.
type Service struct {
	Tables    store.FullTableReader
	Matcher   oracle.Matcher
	Exporter  PartitionExporter
	Publisher StatusPublisher
}

// Result is the outcome of one reconciliation.
type Result struct {
	RunID     string             `json:"run_id"`
	BankCount int                `json:"bank_count"`
	AppCount  int                `json:"app_count"`
	Partition *oracle.Partition  `json:"partition"`
	ExportURI string             `json:"export_uri,omitempty"`
	Published *notionsync.Result `json:"published,omitempty"`
}

// Run reads both full tables, asks the matcher for a partition, then exports
// and publishes it when configured. Oracle errors are returned unchanged so
// callers can inspect *oracle.StatusError and *oracle.ParseError. When a
// follow-up step fails the partial Result is returned with the error.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	runID := uuid.New().String()
	log := logger.FromContext(ctx).With().Str("reconcile_id", runID).Logger()
	ctx = logger.WithContext(ctx, log)

	var bank []domain.BankTransaction
	var app []domain.LedgerEntry
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.Tables.ListBankTransactions(gctx)
		if err != nil {
			return fmt.Errorf("Run: list bank transactions: %w", err)
		}
		bank = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.Tables.ListLedgerEntries(gctx)
		if err != nil {
			return fmt.Errorf("Run: list ledger entries: %w", err)
		}
		app = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info().Int("bank_count", len(bank)).Int("app_count", len(app)).Msg("Requesting reconciliation")

	partition, err := s.Matcher.Match(ctx, oracle.Request{BankTransactions: bank, AppTransactions: app})
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:     runID,
		BankCount: len(bank),
		AppCount:  len(app),
		Partition: partition,
	}

	log.Info().
		Int("matched", len(partition.Matched)).
		Int("unmatched_bank", len(partition.UnmatchedBank)).
		Int("unmatched_app", len(partition.UnmatchedApp)).
		Msg("Reconciliation partition received")

	if s.Exporter != nil {
		uri, err := s.Exporter.ExportPartition(ctx, gcsexport.PartitionSnapshot{
			RunID:     runID,
			BankCount: len(bank),
			AppCount:  len(app),
			Partition: partition,
		})
		if err != nil {
			return res, fmt.Errorf("Run: export partition: %w", err)
		}
		res.ExportURI = uri
	}

	if s.Publisher != nil {
		published, err := s.Publisher.Publish(ctx, StatusEntries(ctx, bank, partition))
		if err != nil {
			return res, fmt.Errorf("Run: publish: %w", err)
		}
		res.Published = published
	}

	return res, nil
}

// StatusEntries labels each bank row Matched or Unmatched according to the
// partition. Rows the oracle did not mention get no status. Echoed items that
// do not decode as bank transactions are skipped.
func StatusEntries(ctx context.Context, bank []domain.BankTransaction, p *oracle.Partition) []notionsync.Entry {
	status := make(map[domain.NaturalKey]string)
	mark := func(raw json.RawMessage, s string) {
		var tx domain.BankTransaction
		if err := json.Unmarshal(raw, &tx); err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Msg("Skipping undecodable bank item in partition")
			return
		}
		status[tx.Key()] = s
	}
	for _, pair := range p.Matched {
		mark(pair.Bank, notionsync.StatusMatched)
	}
	for _, raw := range p.UnmatchedBank {
		mark(raw, notionsync.StatusUnmatched)
	}

	entries := make([]notionsync.Entry, 0, len(bank))
	for _, tx := range bank {
		entries = append(entries, notionsync.Entry{Tx: tx, Status: status[tx.Key()]})
	}
	return entries
}
