package pipeline

import (
	"cloud.google.com/go/civil"
	"github.com/dvloznov/optifi/internal/domain"
	"github.com/shopspring/decimal"
)

// DailyRevenue is an immutable mapping from calendar date to POS revenue.
// Dates keep the order in which they first appeared in the sales input.
type DailyRevenue struct {
	dates  []civil.Date
	totals map[civil.Date]decimal.Decimal
}

// AggregateRevenue folds sales records inside window into one total per date.
// Missing prices count as zero. Dates without records are absent.
func AggregateRevenue(sales []domain.SalesRecord, window domain.DateRange) DailyRevenue {
	var dates []civil.Date
	totals := make(map[civil.Date]decimal.Decimal)

	for _, s := range sales {
		if !window.Contains(s.Date) {
			continue
		}
		prev, seen := totals[s.Date]
		if !seen {
			dates = append(dates, s.Date)
		}
		totals[s.Date] = prev.Add(domain.AmountOrZero(s.Price))
	}

	return DailyRevenue{dates: dates, totals: totals}
}

// Dates returns the dates with revenue, in first-seen order.
func (r DailyRevenue) Dates() []civil.Date {
	out := make([]civil.Date, len(r.dates))
	copy(out, r.dates)
	return out
}

// Total returns the revenue for date and whether any sales fell on it.
func (r DailyRevenue) Total(date civil.Date) (decimal.Decimal, bool) {
	total, ok := r.totals[date]
	return total, ok
}

// Len returns the number of dates with revenue.
func (r DailyRevenue) Len() int {
	return len(r.dates)
}

// Sum returns the revenue across all dates.
func (r DailyRevenue) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, d := range r.dates {
		sum = sum.Add(r.totals[d])
	}
	return sum
}

// DepositsFromRevenue emits exactly one POS settlement deposit per date.
func DepositsFromRevenue(revenue DailyRevenue) []domain.BankTransaction {
	deposits := make([]domain.BankTransaction, 0, revenue.Len())
	for _, date := range revenue.dates {
		deposits = append(deposits, domain.BankTransaction{
			Date:        date,
			Type:        domain.Deposit,
			Description: domain.POSSettlementDescription,
			Amount:      domain.RoundAmount(revenue.totals[date]),
			Source:      domain.SourceSystem,
		})
	}
	return deposits
}
