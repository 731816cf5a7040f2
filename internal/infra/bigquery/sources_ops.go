package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/optifi/internal/domain"
	"google.golang.org/api/iterator"
)

func salesByDateRangeSQL(ds Dataset) string {
	return fmt.Sprintf(`
		SELECT
			date,
			CAST(price AS STRING) AS price
		FROM %s
		WHERE date >= @start_date
		  AND date <= @end_date
		ORDER BY date
	`, ds.Table(salesTable))
}

// QuerySalesByDateRangeWithClient returns POS records dated inside window,
// oldest first.
func QuerySalesByDateRangeWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, window domain.DateRange) ([]domain.SalesRecord, error) {
	q := client.Query(salesByDateRangeSQL(ds))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: window.Start},
		{Name: "end_date", Value: window.End},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QuerySalesByDateRange: query read: %w", err)
	}

	var out []domain.SalesRecord
	for {
		var r SalesRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QuerySalesByDateRange: iter next: %w", err)
		}
		out = append(out, r.toDomain())
	}

	return out, nil
}

const ledgerColumns = `
			expense_id,
			date,
			category,
			supplier,
			description,
			CAST(amount AS STRING) AS amount,
			payment_method`

// QueryLedgerByDateRangeWithClient returns ledger rows inside window, skipping
// rows whose category equals excludeCategory. An empty excludeCategory keeps
// every row.
func QueryLedgerByDateRangeWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, window domain.DateRange, excludeCategory string) ([]domain.LedgerEntry, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT%s
		FROM %s
		WHERE date >= @start_date
		  AND date <= @end_date
		  AND (@exclude_category = '' OR IFNULL(category, '') != @exclude_category)
		ORDER BY date
	`, ledgerColumns, ds.Table(ledgerTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: window.Start},
		{Name: "end_date", Value: window.End},
		{Name: "exclude_category", Value: excludeCategory},
	}

	return readLedger(ctx, q, "QueryLedgerByDateRange")
}

// ListLedgerEntriesWithClient returns the whole ledger table.
func ListLedgerEntriesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) ([]domain.LedgerEntry, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT%s
		FROM %s
		ORDER BY date
	`, ledgerColumns, ds.Table(ledgerTable)))

	return readLedger(ctx, q, "ListLedgerEntries")
}

func readLedger(ctx context.Context, q *bigquery.Query, op string) ([]domain.LedgerEntry, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: query read: %w", op, err)
	}

	var out []domain.LedgerEntry
	for {
		var r LedgerRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: iter next: %w", op, err)
		}
		out = append(out, r.toDomain())
	}

	return out, nil
}
