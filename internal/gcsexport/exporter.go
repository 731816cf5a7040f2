package gcsexport

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/dvloznov/optifi/internal/domain"
	"github.com/dvloznov/optifi/internal/logger"
	"github.com/dvloznov/optifi/internal/oracle"
)

// Object name prefixes.
const (
	PartitionPrefix = "reconciliations"
	BankViewPrefix  = "bank-view"
)

const jsonContentType = "application/json"

// PartitionSnapshot is the document written for one reconciliation.
type PartitionSnapshot struct {
	RunID      string            `json:"run_id"`
	ExportedAt time.Time         `json:"exported_at"`
	BankCount  int               `json:"bank_count"`
	AppCount   int               `json:"app_count"`
	Partition  *oracle.Partition `json:"partition"`
}

// BankViewSnapshot is the document written for a prepared bank view.
type BankViewSnapshot struct {
	ExportedAt   time.Time                `json:"exported_at"`
	Window       domain.DateRange         `json:"window"`
	Transactions []domain.BankTransaction `json:"transactions"`
}

// Exporter writes JSON snapshots into one bucket.
type Exporter struct {
	writer ObjectWriter
	bucket string
	now    func() time.Time
}

// NewExporter creates an Exporter.
func NewExporter(writer ObjectWriter, bucket string) *Exporter {
	return &Exporter{writer: writer, bucket: bucket, now: time.Now}
}

// ExportPartition writes reconciliations/<date>/<runID>.json and returns its URI.
func (e *Exporter) ExportPartition(ctx context.Context, snap PartitionSnapshot) (string, error) {
	if snap.ExportedAt.IsZero() {
		snap.ExportedAt = e.now().UTC()
	}
	object := path.Join(PartitionPrefix, snap.ExportedAt.Format("2006-01-02"), snap.RunID+".json")
	return e.put(ctx, object, snap)
}

// ExportBankView writes bank-view/<start>_<end>/<timestamp>.json and returns its URI.
func (e *Exporter) ExportBankView(ctx context.Context, window domain.DateRange, rows []domain.BankTransaction) (string, error) {
	snap := BankViewSnapshot{
		ExportedAt:   e.now().UTC(),
		Window:       window,
		Transactions: rows,
	}
	if snap.Transactions == nil {
		snap.Transactions = []domain.BankTransaction{}
	}
	object := path.Join(BankViewPrefix, window.Start.String()+"_"+window.End.String(), snap.ExportedAt.Format("20060102T150405Z")+".json")
	return e.put(ctx, object, snap)
}

func (e *Exporter) put(ctx context.Context, object string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", object, err)
	}
	if err := e.writer.WriteObject(ctx, e.bucket, object, jsonContentType, data); err != nil {
		return "", err
	}

	uri := ObjectURI(e.bucket, object)
	log := logger.FromContext(ctx)
	log.Info().Str("uri", uri).Int("bytes", len(data)).Msg("Exported snapshot")
	return uri, nil
}
