package pipeline

import (
	"errors"
	"fmt"

	"github.com/dvloznov/optifi/internal/store"
)

// ErrAtomicUnsupported is returned when atomic mode is requested against a
// store that cannot apply a batch in one transaction.
var ErrAtomicUnsupported = errors.New("store does not support atomic upserts")

// WriteError reports the row whose upsert stopped the run.
type WriteError = store.WriteError

// Source names used in FetchError.
const (
	SourceSales  = "sales"
	SourceLedger = "ledger"
)

// FetchError reports a failed read from one of the source ledgers.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
