package bigquery

import "fmt"

const (
	salesTable           = "sales_transactions"
	ledgerTable          = "ledger_transactions"
	bankTransactionTable = "bank_transactions"
	syncRunsTable        = "sync_runs"
)

// Dataset locates the tables the store reads and writes.
type Dataset struct {
	ProjectID string
	DatasetID string
}

// Table returns the fully qualified, backtick-quoted table name.
func (d Dataset) Table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", d.ProjectID, d.DatasetID, name)
}
