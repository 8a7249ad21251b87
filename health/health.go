// Package health implements the Provider Health Store: a durable key→record
// mapping holding one Circuit Breaker state per (provider, region) pair. The
// store itself is dumb — it persists and reloads records — all transition
// logic lives in the breaker package, which is the sole writer.
package health

import (
	"context"
	"fmt"
	"time"
)

// Status mirrors the Circuit Breaker Manager's three states.
type Status string

const (
	StatusClosed   Status = "CLOSED"
	StatusOpen     Status = "OPEN"
	StatusHalfOpen Status = "HALF_OPEN"
)

// Key returns the composite "<provider>#<region>" partition key used by the
// store.
func Key(provider, region string) string {
	return fmt.Sprintf("%s#%s", provider, region)
}

// Record is one Provider Health Record, matching the contract's field list
// exactly. TTL is store-level expiry (epoch seconds in DynamoDB; carried as
// a time.Time in the Go type and converted at the store boundary).
type Record struct {
	Provider                 string
	Region                   string
	Status                   Status
	ConsecutiveFailures      uint32
	CurrentHalfOpenSuccesses uint32
	TotalFailures            uint64
	TotalSuccesses           uint64
	TotalLatencyMs           uint64
	LastFailureTimestamp     *time.Time
	OpenedTimestamp          *time.Time
	LastStateChangeTimestamp time.Time
	TTL                      time.Time
}

// Key returns this record's composite store key.
func (r Record) Key() string {
	return Key(r.Provider, r.Region)
}

// AvgLatencyMs returns the record's running average latency, or false if no
// successful call has ever been recorded for this key.
func (r Record) AvgLatencyMs() (float64, bool) {
	if r.TotalSuccesses == 0 {
		return 0, false
	}
	return float64(r.TotalLatencyMs) / float64(r.TotalSuccesses), true
}

// NewRecord builds the lazily-created default CLOSED record for a key that
// has never been written before.
func NewRecord(provider, region string, now time.Time, ttl time.Duration) Record {
	return Record{
		Provider:                 provider,
		Region:                   region,
		Status:                   StatusClosed,
		LastStateChangeTimestamp: now,
		TTL:                      now.Add(ttl),
	}
}

// Store persists and reloads Provider Health Records. Implementations
// provide read-your-writes consistency for a single key and last-writer-wins
// semantics across concurrent writers.
type Store interface {
	// Get returns the record for key, or ok=false if no record exists (the
	// caller is expected to lazily create a default CLOSED record).
	Get(ctx context.Context, key string) (Record, bool, error)
	// Put persists record unconditionally (last-writer-wins).
	Put(ctx context.Context, record Record) error
	// PutIfVersion persists record only if the stored record's status still
	// matches expectStatus (or no record exists and expectStatus is empty).
	// Implementations that cannot support conditional writes may treat this
	// as equivalent to Put; it exists only to reduce duplicate HALF_OPEN
	// probes, not for correctness.
	PutIfVersion(ctx context.Context, record Record, expectStatus Status) (bool, error)
}
