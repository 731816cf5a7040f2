package pipeline

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/optifi/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) civil.Date {
	out, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return out
}

func amt(s string) decimal.NullDecimal {
	return domain.ParseAmount(s)
}

func june(t *testing.T) domain.DateRange {
	t.Helper()
	w, err := domain.ParseDateRange("2024-06-01", "2024-06-30")
	require.NoError(t, err)
	return w
}

func keys(rows []domain.BankTransaction) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Key().String()
	}
	return out
}

func TestAggregateRevenue(t *testing.T) {
	sales := []domain.SalesRecord{
		{Date: d("2024-06-03"), Price: amt("5.00")},
		{Date: d("2024-06-01"), Price: amt("2.25")},
		{Date: d("2024-06-03"), Price: amt("3.50")},
		{Date: d("2024-06-01"), Price: decimal.NullDecimal{}},
		{Date: d("2024-05-31"), Price: amt("100")},
		{Date: d("2024-07-01"), Price: amt("100")},
	}

	rev := AggregateRevenue(sales, june(t))

	assert.Equal(t, 2, rev.Len())
	assert.Equal(t, []civil.Date{d("2024-06-03"), d("2024-06-01")}, rev.Dates())

	total, ok := rev.Total(d("2024-06-03"))
	require.True(t, ok)
	assert.Equal(t, "8.50", total.StringFixed(2))

	total, ok = rev.Total(d("2024-06-01"))
	require.True(t, ok)
	assert.Equal(t, "2.25", total.StringFixed(2))

	_, ok = rev.Total(d("2024-06-02"))
	assert.False(t, ok, "dates without sales must be absent")

	assert.Equal(t, "10.75", rev.Sum().StringFixed(2))
}

func TestAggregateRevenue_Empty(t *testing.T) {
	rev := AggregateRevenue(nil, june(t))
	assert.Equal(t, 0, rev.Len())
	assert.Empty(t, DepositsFromRevenue(rev))
}

func TestDepositsFromRevenue(t *testing.T) {
	sales := []domain.SalesRecord{
		{Date: d("2024-06-02"), Price: amt("1.005")},
		{Date: d("2024-06-02"), Price: amt("1.000")},
		{Date: d("2024-06-01"), Price: amt("4")},
	}

	deposits := DepositsFromRevenue(AggregateRevenue(sales, june(t)))

	require.Len(t, deposits, 2)
	for _, dep := range deposits {
		assert.Equal(t, domain.Deposit, dep.Type)
		assert.Equal(t, domain.POSSettlementDescription, dep.Description)
		assert.Equal(t, domain.SourceSystem, dep.Source)
	}
	assert.Equal(t, []string{
		"2024-06-02|POS Settlement|2.01",
		"2024-06-01|POS Settlement|4.00",
	}, keys(deposits))
}

func TestNormalizeLedger(t *testing.T) {
	entries := []domain.LedgerEntry{
		{Date: d("2024-06-01"), Category: "Rent", Supplier: "Main St Properties LLC", Amount: amt("100.00")},
		{Date: d("2024-06-01"), Category: domain.SalesRevenueCategory, Supplier: "Square", Amount: amt("900")},
		{Date: d("2024-06-02"), Category: "Supplies", Supplier: "Sysco", Amount: amt("12.345")},
		{Date: d("2024-06-02"), Category: "Supplies", Supplier: "Sysco", Amount: amt("12.345")},
		{Date: d("2024-06-03"), Category: "Utilities", Supplier: "City Power", Amount: amt("junk")},
		{Date: d("2024-07-01"), Category: "Rent", Supplier: "Main St Properties LLC", Amount: amt("100.00")},
	}

	rows := NormalizeLedger(entries, june(t))

	assert.Equal(t, []string{
		"2024-06-01|Main St Properties LLC|-100.00",
		"2024-06-02|Sysco|-12.35",
		"2024-06-02|Sysco|-12.35",
		"2024-06-03|City Power|0.00",
	}, keys(rows), "one row per non-revenue entry, not aggregated")

	for _, r := range rows {
		assert.Equal(t, domain.Withdrawal, r.Type)
		assert.NotEqual(t, domain.SalesRevenueCategory, r.Description)
	}
	assert.True(t, rows[0].Amount.IsNegative())
}

func TestDeduplicate_FirstWins(t *testing.T) {
	first := domain.BankTransaction{Date: d("2024-06-01"), Type: domain.Withdrawal, Description: "Acme", Amount: decimal.RequireFromString("-10.001"), Source: "first"}
	second := domain.BankTransaction{Date: d("2024-06-01"), Type: domain.Withdrawal, Description: "Acme", Amount: decimal.RequireFromString("-10.004"), Source: "second"}
	other := domain.BankTransaction{Date: d("2024-06-02"), Type: domain.Withdrawal, Description: "Acme", Amount: decimal.RequireFromString("-10")}

	out := Deduplicate([]domain.BankTransaction{first, other, second})

	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].Source)
	assert.Equal(t, "2024-06-02", out[1].Date.String())
}

func TestBuildBatch_ExampleScenario(t *testing.T) {
	window := june(t)
	sales := []domain.SalesRecord{
		{Date: d("2024-06-01"), Price: amt("5.00")},
		{Date: d("2024-06-01"), Price: amt("3.50")},
	}
	ledger := []domain.LedgerEntry{
		{Date: d("2024-06-01"), Category: "Rent", Supplier: "Main St Properties LLC", Amount: amt("100.00")},
	}

	batch := BuildBatch(
		DepositsFromRevenue(AggregateRevenue(sales, window)),
		NormalizeLedger(ledger, window),
	)

	require.Len(t, batch, 2)
	assert.Equal(t, domain.Deposit, batch[0].Type)
	assert.Equal(t, "8.50", batch[0].Amount.StringFixed(2))
	assert.Equal(t, domain.Withdrawal, batch[1].Type)
	assert.Equal(t, "Main St Properties LLC", batch[1].Description)
	assert.Equal(t, "-100.00", batch[1].Amount.StringFixed(2))
}

func TestBuildBatch_Idempotent(t *testing.T) {
	window := june(t)
	ledger := []domain.LedgerEntry{
		{Date: d("2024-06-01"), Category: "Rent", Supplier: "A", Amount: amt("1")},
		{Date: d("2024-06-01"), Category: "Rent", Supplier: "A", Amount: amt("1")},
	}
	once := BuildBatch(nil, NormalizeLedger(ledger, window))
	twice := Deduplicate(once)
	assert.Equal(t, keys(once), keys(twice))
	assert.Len(t, once, 1)
}

func TestRecentView(t *testing.T) {
	rows := []domain.BankTransaction{
		{Date: d("2024-06-01"), Description: "a"},
		{Date: d("2024-06-03"), Description: "b"},
		{Date: d("2024-06-02"), Description: "c"},
		{Date: d("2024-06-03"), Description: "d"},
	}

	view := RecentView(rows, 3)

	require.Len(t, view, 3)
	assert.Equal(t, "b", view[0].Description)
	assert.Equal(t, "d", view[1].Description)
	assert.Equal(t, "c", view[2].Description)
	assert.Equal(t, "a", rows[0].Description, "input must not be reordered")

	assert.Len(t, RecentView(rows, 0), 4)
}
