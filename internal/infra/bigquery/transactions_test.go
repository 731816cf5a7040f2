package bigquery

import (
	"strings"
	"testing"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/optifi/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDatasetTable(t *testing.T) {
	ds := Dataset{ProjectID: "proj", DatasetID: "optifi"}
	assert.Equal(t, "`proj.optifi.bank_transactions`", ds.Table(bankTransactionTable))
}

func TestSalesByDateRangeSQL_OrdersByDate(t *testing.T) {
	sql := salesByDateRangeSQL(Dataset{ProjectID: "proj", DatasetID: "optifi"})
	assert.Contains(t, sql, "`proj.optifi.sales_transactions`")
	assert.Contains(t, sql, "ORDER BY date")
}

func TestLedgerRowToDomain(t *testing.T) {
	tests := []struct {
		name      string
		amount    bigquery.NullString
		wantValid bool
		want      string
	}{
		{name: "numeric", amount: bigquery.NullString{StringVal: "100.5", Valid: true}, wantValid: true, want: "100.50"},
		{name: "null", amount: bigquery.NullString{}, wantValid: false},
		{name: "junk", amount: bigquery.NullString{StringVal: "n/a", Valid: true}, wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := LedgerRow{
				Date:     civil.Date{Year: 2024, Month: 6, Day: 1},
				Category: bigquery.NullString{StringVal: "Rent", Valid: true},
				Supplier: bigquery.NullString{StringVal: "Main St Properties LLC", Valid: true},
				Amount:   tt.amount,
			}
			e := row.toDomain()
			assert.Equal(t, "Rent", e.Category)
			assert.Equal(t, "Main St Properties LLC", e.Supplier)
			assert.Equal(t, tt.wantValid, e.Amount.Valid)
			if tt.wantValid {
				assert.Equal(t, tt.want, e.Amount.Decimal.StringFixed(2))
			}
		})
	}
}

func TestSalesRowToDomain(t *testing.T) {
	r := SalesRow{Date: civil.Date{Year: 2024, Month: 6, Day: 1}, Price: bigquery.NullString{StringVal: "3.5", Valid: true}}
	s := r.toDomain()
	assert.True(t, s.Price.Valid)
	assert.Equal(t, "3.50", s.Price.Decimal.StringFixed(2))
}

func TestBankTransactionRowToDomain(t *testing.T) {
	r := BankTransactionRow{
		ID:          "id-1",
		Date:        civil.Date{Year: 2024, Month: 6, Day: 1},
		Type:        "Withdrawal",
		Description: "Main St Properties LLC",
		Amount:      "-100",
		Source:      bigquery.NullString{StringVal: "system", Valid: true},
	}
	tx := r.toDomain()
	assert.Equal(t, domain.Withdrawal, tx.Type)
	assert.Equal(t, "2024-06-01|Main St Properties LLC|-100.00", tx.Key().String())
	assert.Equal(t, "system", tx.Source)
}

func TestMergeParameters(t *testing.T) {
	tx := domain.BankTransaction{
		Date:        civil.Date{Year: 2024, Month: 6, Day: 1},
		Type:        domain.Deposit,
		Description: domain.POSSettlementDescription,
		Amount:      decimal.RequireFromString("8.5"),
		Source:      domain.SourceSystem,
	}

	params := mergeParameters("row-id", tx)

	byName := make(map[string]interface{}, len(params))
	for _, p := range params {
		byName[p.Name] = p.Value
	}
	assert.Equal(t, "row-id", byName["id"])
	assert.Equal(t, tx.Date, byName["date"])
	assert.Equal(t, "8.50", byName["amount"])
	assert.Equal(t, "Deposit", byName["type"])
	assert.Equal(t, "system", byName["source"])

	for name := range byName {
		assert.True(t, strings.Contains(mergeBankTransactionSQL, "@"+name), "parameter %s unused", name)
	}
}

func TestMergeSQLKeysOnNaturalKey(t *testing.T) {
	assert.Contains(t, mergeBankTransactionSQL, "T.date = S.date")
	assert.Contains(t, mergeBankTransactionSQL, "T.description = S.description")
	assert.Contains(t, mergeBankTransactionSQL, "T.amount = S.amount")
}
