package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dvloznov/optifi/internal/domain"
)

// Request is the body sent to the match oracle: the full bank view and the
// full ledger.
type Request struct {
	BankTransactions []domain.BankTransaction `json:"bank_transactions"`
	AppTransactions  []domain.LedgerEntry     `json:"app_transactions"`
}

// Pair is one matched bank/ledger item. Items are kept as the oracle returned
// them since it may echo rows with extra or reshaped fields.
type Pair struct {
	Bank json.RawMessage `json:"bank"`
	App  json.RawMessage `json:"app"`
}

// Partition is the oracle's answer.
type Partition struct {
	Matched       []Pair            `json:"matched"`
	UnmatchedBank []json.RawMessage `json:"unmatched_bank"`
	UnmatchedApp  []json.RawMessage `json:"unmatched_app"`
}

// Matcher partitions bank and ledger rows into matched and unmatched sets.
// Implementations make a single round trip with no retry.
type Matcher interface {
	Match(ctx context.Context, req Request) (*Partition, error)
}

// ErrNoJSONObject is returned when model output contains no JSON object.
var ErrNoJSONObject = errors.New("no JSON object in model output")

// ErrMissingCredential is returned when the oracle's API key is not configured.
var ErrMissingCredential = errors.New("missing oracle API key")

// ParseError reports model output that could not be read as a partition.
// Raw holds the text as received.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse partition: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// StatusError is a non-success response from the oracle. StatusCode is the
// upstream code and Body its raw payload.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("oracle returned status %d: %s", e.StatusCode, e.Body)
}
