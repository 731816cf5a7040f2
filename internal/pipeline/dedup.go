package pipeline

import (
	"github.com/dvloznov/optifi/internal/domain"
)

// Deduplicate drops every row whose natural key was already seen earlier in
// rows. The first occurrence wins and relative order is preserved.
func Deduplicate(rows []domain.BankTransaction) []domain.BankTransaction {
	seen := make(map[domain.NaturalKey]struct{}, len(rows))
	out := make([]domain.BankTransaction, 0, len(rows))
	for _, r := range rows {
		k := r.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// BuildBatch concatenates deposits and withdrawals, in that order, and
// deduplicates the result.
func BuildBatch(deposits, withdrawals []domain.BankTransaction) []domain.BankTransaction {
	all := make([]domain.BankTransaction, 0, len(deposits)+len(withdrawals))
	all = append(all, deposits...)
	all = append(all, withdrawals...)
	return Deduplicate(all)
}
