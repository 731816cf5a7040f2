package pipeline

import (
	"github.com/dvloznov/optifi/internal/domain"
)

// NormalizeLedger turns every non-revenue ledger entry inside window into one
// withdrawal. The supplier becomes the description and the amount is negated
// after rounding; a missing amount is treated as zero.
func NormalizeLedger(entries []domain.LedgerEntry, window domain.DateRange) []domain.BankTransaction {
	withdrawals := make([]domain.BankTransaction, 0, len(entries))
	for _, e := range entries {
		if e.IsRevenue() || !window.Contains(e.Date) {
			continue
		}
		withdrawals = append(withdrawals, domain.BankTransaction{
			Date:        e.Date,
			Type:        domain.Withdrawal,
			Description: e.Supplier,
			Amount:      domain.RoundAmount(domain.AmountOrZero(e.Amount)).Neg(),
			Source:      domain.SourceSystem,
		})
	}
	return withdrawals
}
