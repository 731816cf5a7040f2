package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/optifi/internal/domain"
	"github.com/shopspring/decimal"
)

// Monetary columns are NUMERIC in the schema but selected as STRING so that
// malformed or NULL values reach domain.ParseAmount instead of failing the read.

type SalesRow struct {
	Date  civil.Date          `bigquery:"date"`  // REQUIRED
	Price bigquery.NullString `bigquery:"price"` // NULLABLE, NUMERIC cast to STRING
}

type LedgerRow struct {
	ExpenseID     bigquery.NullString `bigquery:"expense_id"`     // NULLABLE
	Date          civil.Date          `bigquery:"date"`           // REQUIRED
	Category      bigquery.NullString `bigquery:"category"`       // NULLABLE
	Supplier      bigquery.NullString `bigquery:"supplier"`       // NULLABLE
	Description   bigquery.NullString `bigquery:"description"`    // NULLABLE
	Amount        bigquery.NullString `bigquery:"amount"`         // NULLABLE, NUMERIC cast to STRING
	PaymentMethod bigquery.NullString `bigquery:"payment_method"` // NULLABLE
}

type BankTransactionRow struct {
	ID          string              `bigquery:"id"`          // REQUIRED
	Date        civil.Date          `bigquery:"date"`        // REQUIRED
	Type        string              `bigquery:"type"`        // REQUIRED
	Description string              `bigquery:"description"` // REQUIRED
	Amount      string              `bigquery:"amount"`      // REQUIRED, NUMERIC cast to STRING
	Source      bigquery.NullString `bigquery:"source"`      // NULLABLE

	CreatedTS time.Time              `bigquery:"created_ts"` // REQUIRED
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}

func (r SalesRow) toDomain() domain.SalesRecord {
	return domain.SalesRecord{
		Date:  r.Date,
		Price: nullAmount(r.Price),
	}
}

func (r LedgerRow) toDomain() domain.LedgerEntry {
	return domain.LedgerEntry{
		ExpenseID:     r.ExpenseID.StringVal,
		Date:          r.Date,
		Category:      r.Category.StringVal,
		Supplier:      r.Supplier.StringVal,
		Description:   r.Description.StringVal,
		Amount:        nullAmount(r.Amount),
		PaymentMethod: r.PaymentMethod.StringVal,
	}
}

func (r BankTransactionRow) toDomain() domain.BankTransaction {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		amount = decimal.Zero
	}
	return domain.BankTransaction{
		Date:        r.Date,
		Type:        domain.TransactionType(r.Type),
		Description: r.Description,
		Amount:      amount,
		Source:      r.Source.StringVal,
	}
}

func nullAmount(s bigquery.NullString) decimal.NullDecimal {
	if !s.Valid {
		return decimal.NullDecimal{}
	}
	return domain.ParseAmount(s.StringVal)
}
