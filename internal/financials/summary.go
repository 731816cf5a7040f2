package financials

import (
	"context"
	"fmt"

	"github.com/dvloznov/optifi/internal/domain"
	"github.com/dvloznov/optifi/internal/logger"
	"github.com/dvloznov/optifi/internal/store"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var hundred = decimal.NewFromInt(100)

// Totals are one period's revenue and operating expenses.
type Totals struct {
	Window   domain.DateRange `json:"window"`
	Revenue  decimal.Decimal  `json:"revenue"`
	Expenses decimal.Decimal  `json:"expenses"`
}

// NetProfit is revenue minus expenses.
func (t Totals) NetProfit() decimal.Decimal {
	return t.Revenue.Sub(t.Expenses)
}

// MarginPct is net profit as a percentage of revenue, or zero when there is
// no revenue.
func (t Totals) MarginPct() decimal.Decimal {
	if !t.Revenue.IsPositive() {
		return decimal.Zero
	}
	return t.NetProfit().Div(t.Revenue).Mul(hundred)
}

// Summary compares a month with the one before it.
type Summary struct {
	Month     domain.DateRange `json:"month"`
	Revenue   decimal.Decimal  `json:"revenue"`
	Expenses  decimal.Decimal  `json:"expenses"`
	NetProfit decimal.Decimal  `json:"net_profit"`
	MarginPct decimal.Decimal  `json:"margin_pct"`

	// RevenueDeltaPct is nil when the previous month had no revenue.
	RevenueDeltaPct *decimal.Decimal `json:"revenue_delta_pct"`
	// MarginDeltaPP is in percentage points; nil when the previous month had
	// no positive revenue.
	MarginDeltaPP *decimal.Decimal `json:"margin_delta_pp"`

	Previous Totals `json:"previous"`
}

// ComputeTotals sums sales prices and non-revenue ledger amounts. Missing
// values count as zero.
func ComputeTotals(window domain.DateRange, sales []domain.SalesRecord, ledger []domain.LedgerEntry) Totals {
	t := Totals{Window: window}
	for _, s := range sales {
		t.Revenue = t.Revenue.Add(domain.AmountOrZero(s.Price))
	}
	for _, e := range ledger {
		if e.IsRevenue() {
			continue
		}
		t.Expenses = t.Expenses.Add(domain.AmountOrZero(e.Amount))
	}
	return t
}

// Summarize builds the month-over-month comparison. Percentages are rounded
// to two places.
func Summarize(current, previous Totals) Summary {
	s := Summary{
		Month:     current.Window,
		Revenue:   domain.RoundAmount(current.Revenue),
		Expenses:  domain.RoundAmount(current.Expenses),
		NetProfit: domain.RoundAmount(current.NetProfit()),
		MarginPct: current.MarginPct().Round(2),
		Previous:  previous,
	}

	if !previous.Revenue.IsZero() {
		d := current.Revenue.Sub(previous.Revenue).Div(previous.Revenue).Mul(hundred).Round(2)
		s.RevenueDeltaPct = &d
	}
	if previous.Revenue.IsPositive() {
		d := current.MarginPct().Sub(previous.MarginPct()).Round(2)
		s.MarginDeltaPP = &d
	}
	return s
}

// MonthlySummary reads the month and the month before it and summarizes them.
func MonthlySummary(ctx context.Context, src store.SourceReader, month domain.DateRange) (*Summary, error) {
	if err := month.Validate(); err != nil {
		return nil, err
	}
	prevMonth := month.PreviousMonth()

	var current, previous Totals
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := readTotals(gctx, src, month)
		current = t
		return err
	})
	g.Go(func() error {
		t, err := readTotals(gctx, src, prevMonth)
		previous = t
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("MonthlySummary: %w", err)
	}

	s := Summarize(current, previous)
	log := logger.FromContext(ctx)
	log.Debug().
		Str("month", month.String()).
		Str("revenue", s.Revenue.String()).
		Str("expenses", s.Expenses.String()).
		Msg("Computed monthly summary")
	return &s, nil
}

func readTotals(ctx context.Context, src store.SourceReader, window domain.DateRange) (Totals, error) {
	sales, err := src.QuerySalesByDateRange(ctx, window)
	if err != nil {
		return Totals{}, fmt.Errorf("sales %s: %w", window, err)
	}
	ledger, err := src.QueryLedgerByDateRange(ctx, window, domain.SalesRevenueCategory)
	if err != nil {
		return Totals{}, fmt.Errorf("ledger %s: %w", window, err)
	}
	return ComputeTotals(window, sales, ledger), nil
}
