package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/optifi/internal/domain"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// mergeBankTransactionSQL upserts one row keyed on (date, description, amount).
// BigQuery has no unique constraints, so the MERGE condition is what enforces
// the natural key.
const mergeBankTransactionSQL = `
		MERGE %s T
		USING (
			SELECT
				@date AS date,
				@description AS description,
				CAST(@amount AS NUMERIC) AS amount,
				@type AS type,
				@source AS source
		) S
		ON T.date = S.date
		   AND T.description = S.description
		   AND T.amount = S.amount
		WHEN MATCHED THEN
			UPDATE SET type = S.type, source = S.source, updated_ts = CURRENT_TIMESTAMP()
		WHEN NOT MATCHED THEN
			INSERT (id, date, type, description, amount, source, created_ts)
			VALUES (@id, S.date, S.type, S.description, S.amount, S.source, CURRENT_TIMESTAMP())
	`

// mergeParameters binds tx to mergeBankTransactionSQL.
func mergeParameters(id string, tx domain.BankTransaction) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "id", Value: id},
		{Name: "date", Value: tx.Date},
		{Name: "description", Value: tx.Description},
		{Name: "amount", Value: tx.Amount.StringFixed(domain.AmountPlaces)},
		{Name: "type", Value: string(tx.Type)},
		{Name: "source", Value: tx.Source},
	}
}

// UpsertBankTransactionWithClient writes one bank transaction with a single
// MERGE statement.
func UpsertBankTransactionWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, tx domain.BankTransaction) error {
	q := client.Query(fmt.Sprintf(mergeBankTransactionSQL, ds.Table(bankTransactionTable)))
	q.Parameters = mergeParameters(uuid.NewString(), tx)

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("UpsertBankTransaction: running merge: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("UpsertBankTransaction: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("UpsertBankTransaction: job error: %w", err)
	}

	return nil
}

// ListBankTransactionsWithClient returns the whole bank_transactions table,
// newest first.
func ListBankTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) ([]domain.BankTransaction, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			id,
			date,
			type,
			description,
			CAST(amount AS STRING) AS amount,
			source,
			created_ts,
			updated_ts
		FROM %s
		ORDER BY date DESC, created_ts
	`, ds.Table(bankTransactionTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListBankTransactions: query read: %w", err)
	}

	var out []domain.BankTransaction
	for {
		var r BankTransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListBankTransactions: iter next: %w", err)
		}
		out = append(out, r.toDomain())
	}

	return out, nil
}
