package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

const (
	// SalesRevenueCategory marks ledger rows that settle POS revenue rather than an expense.
	SalesRevenueCategory = "Sales Revenue"

	// POSSettlementDescription is the synthetic description of every daily deposit.
	POSSettlementDescription = "POS Settlement"

	// SourceSystem tags rows generated by the sync pipeline.
	SourceSystem = "system"

	// AmountPlaces is the number of fractional digits every bank amount carries.
	AmountPlaces = 2
)

// TransactionType is the direction of a bank transaction.
type TransactionType string

const (
	Deposit    TransactionType = "Deposit"
	Withdrawal TransactionType = "Withdrawal"
)

// SalesRecord is one point-of-sale line item.
type SalesRecord struct {
	Date  civil.Date          `json:"date"`
	Price decimal.NullDecimal `json:"price"`
}

// LedgerEntry is one categorized expense or revenue-settlement row from the
// transaction ledger. Amount is positive for both kinds.
type LedgerEntry struct {
	ExpenseID     string              `json:"expense_id,omitempty"`
	Date          civil.Date          `json:"date"`
	Category      string              `json:"category"`
	Supplier      string              `json:"supplier"`
	Description   string              `json:"description,omitempty"`
	Amount        decimal.NullDecimal `json:"amount"`
	PaymentMethod string              `json:"payment_method,omitempty"`
}

// IsRevenue reports whether the entry is a revenue settlement.
func (e LedgerEntry) IsRevenue() bool {
	return e.Category == SalesRevenueCategory
}

// BankTransaction mirrors what a bank statement would show for the business.
// Amount is signed: positive for deposits, negative for withdrawals.
type BankTransaction struct {
	Date        civil.Date      `json:"date"`
	Type        TransactionType `json:"type"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Source      string          `json:"source,omitempty"`
}

// Key returns the natural key the store enforces uniqueness on.
func (t BankTransaction) Key() NaturalKey {
	return NaturalKey{
		Date:        t.Date,
		Description: t.Description,
		Amount:      t.Amount.StringFixed(AmountPlaces),
	}
}

// MarshalJSON writes Amount as a bare number with two fractional digits.
func (t BankTransaction) MarshalJSON() ([]byte, error) {
	type Alias BankTransaction
	return json.Marshal(struct {
		Alias
		Amount json.Number `json:"amount"`
	}{
		Alias:  Alias(t),
		Amount: json.Number(t.Amount.StringFixed(AmountPlaces)),
	})
}

// MarshalJSON writes Amount as a bare number, or null when missing.
func (e LedgerEntry) MarshalJSON() ([]byte, error) {
	type Alias LedgerEntry
	var amount *json.Number
	if e.Amount.Valid {
		n := json.Number(e.Amount.Decimal.String())
		amount = &n
	}
	return json.Marshal(struct {
		Alias
		Amount *json.Number `json:"amount"`
	}{
		Alias:  Alias(e),
		Amount: amount,
	})
}

// UnmarshalJSON accepts amounts as numbers, numeric strings, null or junk.
// Anything that is not a number leaves Amount invalid instead of failing.
func (e *LedgerEntry) UnmarshalJSON(data []byte) error {
	type Alias LedgerEntry
	aux := struct {
		*Alias
		Amount json.RawMessage `json:"amount"`
	}{Alias: (*Alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.Amount = parseRawAmount(aux.Amount)
	return nil
}

// UnmarshalJSON accepts prices as numbers, numeric strings, null or junk.
func (s *SalesRecord) UnmarshalJSON(data []byte) error {
	type Alias SalesRecord
	aux := struct {
		*Alias
		Price json.RawMessage `json:"price"`
	}{Alias: (*Alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.Price = parseRawAmount(aux.Price)
	return nil
}

func parseRawAmount(raw json.RawMessage) decimal.NullDecimal {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return decimal.NullDecimal{}
	}
	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.NullDecimal{}
		}
	} else {
		s = string(raw)
	}
	return ParseAmount(s)
}

// ParseAmount parses a loosely typed monetary value. Empty, null and
// non-numeric input (including NaN and Infinity) yields an invalid value.
func ParseAmount(raw string) decimal.NullDecimal {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "null") {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// AmountOrZero returns the value, or zero when it is missing.
func AmountOrZero(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}

// RoundAmount rounds a monetary value to AmountPlaces.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountPlaces)
}

// NaturalKey identifies a bank transaction by its business fields.
type NaturalKey struct {
	Date        civil.Date
	Description string
	Amount      string // fixed to AmountPlaces
}

// String renders the key as date|description|amount.
func (k NaturalKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Date, k.Description, k.Amount)
}
