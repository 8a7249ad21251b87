// Package ledger implements the append-only Ledger Entry accounting record
// written once per successful upstream call.
package ledger

import (
	"context"
	"time"
)

// Entry is one append-only accounting record.
type Entry struct {
	RequestID        string
	FamilyID         string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Cost             float64
	Timestamp        time.Time
	Success          bool
}

// Store is the write/read surface the Router and admin API use. Append
// never fails the calling request: a Store implementation's own errors are
// the caller's problem to log and swallow, matching the router contract
// "debit tokenBalance ... best-effort, non-blocking" framing extended to
// the ledger write itself.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}
