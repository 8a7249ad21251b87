// Package breaker implements the Circuit Breaker Manager: a store-backed
// state machine over Provider Health Records (CLOSED / OPEN / HALF_OPEN),
// keyed by health.Key(provider, region).
package breaker

import (
	"context"
	"log/slog"
	"time"

	"github.com/ferro-labs/llm-router/health"
	"github.com/ferro-labs/llm-router/internal/metrics"
)

// Defaults, from the router contract.
const (
	DefaultFailureThreshold         = 3
	DefaultCooldown                 = 30 * time.Second
	DefaultHalfOpenSuccessThreshold = 2
	DefaultRecordTTL                = 7 * 24 * time.Hour
)

// Manager enforces the Circuit Breaker state machine over a health.Store.
// One Manager instance is shared process-wide; all state lives in the store.
type Manager struct {
	store                    health.Store
	failureThreshold         uint32
	cooldown                 time.Duration
	halfOpenSuccessThreshold uint32
	recordTTL                time.Duration
	logger                   *slog.Logger
	now                      func() time.Time
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithFailureThreshold overrides DefaultFailureThreshold.
func WithFailureThreshold(n uint32) Option { return func(m *Manager) { m.failureThreshold = n } }

// WithCooldown overrides DefaultCooldown.
func WithCooldown(d time.Duration) Option { return func(m *Manager) { m.cooldown = d } }

// WithHalfOpenSuccessThreshold overrides DefaultHalfOpenSuccessThreshold.
func WithHalfOpenSuccessThreshold(n uint32) Option {
	return func(m *Manager) { m.halfOpenSuccessThreshold = n }
}

// WithRecordTTL overrides DefaultRecordTTL.
func WithRecordTTL(d time.Duration) Option { return func(m *Manager) { m.recordTTL = d } }

// WithLogger attaches a structured logger; defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.logger = l } }

// withClock overrides the time source; used by tests only.
func withClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// NewManager constructs a Manager with the router contract defaults, overridable
// via Option.
func NewManager(store health.Store, opts ...Option) *Manager {
	m := &Manager{
		store:                    store,
		failureThreshold:         DefaultFailureThreshold,
		cooldown:                 DefaultCooldown,
		halfOpenSuccessThreshold: DefaultHalfOpenSuccessThreshold,
		recordTTL:                DefaultRecordTTL,
		logger:                   slog.Default(),
		now:                      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsAllowed implements the admission rule of the router contract. It lazily creates
// a default CLOSED record on first interaction with a key, and atomically
// transitions OPEN→HALF_OPEN once the cooldown has elapsed.
func (m *Manager) IsAllowed(ctx context.Context, provider, region string) (bool, error) {
	key := health.Key(provider, region)
	rec, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return false, err
	}

	now := m.now()
	if !ok {
		rec = health.NewRecord(provider, region, now, m.recordTTL)
		if err := m.store.Put(ctx, rec); err != nil {
			return false, err
		}
		m.observe(rec)
		return true, nil
	}

	switch rec.Status {
	case health.StatusClosed:
		m.observe(rec)
		return true, nil
	case health.StatusHalfOpen:
		m.observe(rec)
		return true, nil
	case health.StatusOpen:
		if rec.OpenedTimestamp == nil || now.Sub(*rec.OpenedTimestamp) < m.cooldown {
			m.observe(rec)
			return false, nil
		}
		transitioned := rec
		transitioned.Status = health.StatusHalfOpen
		transitioned.ConsecutiveFailures = 0
		transitioned.CurrentHalfOpenSuccesses = 0
		transitioned.LastStateChangeTimestamp = now
		transitioned.TTL = now.Add(m.recordTTL)

		won, err := m.store.PutIfVersion(ctx, transitioned, health.StatusOpen)
		if err != nil {
			return false, err
		}
		if !won {
			// Another admission check already won the OPEN->HALF_OPEN
			// transition; re-read and apply the winning state's admission
			// rule instead of writing the transition again (a HALF_OPEN
			// winner admits this caller as a further probe).
			current, found, err := m.store.Get(ctx, key)
			if err != nil {
				return false, err
			}
			if !found {
				return false, nil
			}
			m.observe(current)
			return current.Status != health.StatusOpen, nil
		}
		m.observe(transitioned)
		return true, nil
	default:
		m.logger.Warn("breaker: unknown health status, denying", "key", key, "status", string(rec.Status))
		return false, nil
	}
}

// RecordSuccess implements the router contract success-recording rules.
func (m *Manager) RecordSuccess(ctx context.Context, provider, region string, latencyMs uint64) error {
	key := health.Key(provider, region)
	now := m.now()

	rec, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		rec = health.NewRecord(provider, region, now, m.recordTTL)
	}

	rec.TotalSuccesses++
	rec.TotalLatencyMs += latencyMs

	switch rec.Status {
	case health.StatusClosed:
		rec.ConsecutiveFailures = 0
	case health.StatusHalfOpen:
		rec.CurrentHalfOpenSuccesses++
		if rec.CurrentHalfOpenSuccesses >= m.halfOpenSuccessThreshold {
			rec.Status = health.StatusClosed
			rec.CurrentHalfOpenSuccesses = 0
			rec.ConsecutiveFailures = 0
			rec.LastStateChangeTimestamp = now
		}
	case health.StatusOpen:
		// Anomalous: a success landed while the key was OPEN (e.g. a
		// request that was admitted just before the key flipped). Treat it
		// as if it arrived during HALF_OPEN.
		m.logger.Warn("breaker: success recorded while OPEN, treating as half-open probe", "key", key)
		rec.CurrentHalfOpenSuccesses++
		if rec.CurrentHalfOpenSuccesses >= m.halfOpenSuccessThreshold {
			rec.Status = health.StatusClosed
			rec.CurrentHalfOpenSuccesses = 0
			rec.ConsecutiveFailures = 0
			rec.LastStateChangeTimestamp = now
		}
	}

	rec.Provider, rec.Region = provider, region
	rec.TTL = now.Add(m.recordTTL)
	if err := m.store.Put(ctx, rec); err != nil {
		return err
	}
	m.observe(rec)
	return nil
}

// RecordFailure implements the router contract failure-recording rules.
func (m *Manager) RecordFailure(ctx context.Context, provider, region string) error {
	key := health.Key(provider, region)
	now := m.now()

	rec, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		rec = health.NewRecord(provider, region, now, m.recordTTL)
	}

	rec.TotalFailures++
	rec.ConsecutiveFailures++
	rec.LastFailureTimestamp = &now

	switch rec.Status {
	case health.StatusClosed:
		if rec.ConsecutiveFailures >= m.failureThreshold {
			rec.Status = health.StatusOpen
			rec.OpenedTimestamp = &now
			rec.LastStateChangeTimestamp = now
		}
	case health.StatusHalfOpen:
		rec.Status = health.StatusOpen
		rec.CurrentHalfOpenSuccesses = 0
		rec.OpenedTimestamp = &now
		rec.LastStateChangeTimestamp = now
	case health.StatusOpen:
		// Stay OPEN, preserve the original openedTimestamp.
	}

	rec.Provider, rec.Region = provider, region
	rec.TTL = now.Add(m.recordTTL)
	if err := m.store.Put(ctx, rec); err != nil {
		return err
	}
	m.observe(rec)
	return nil
}

// Snapshot returns the current record for (provider, region), for admin/
// inspection endpoints. ok is false if no record has ever been written.
func (m *Manager) Snapshot(ctx context.Context, provider, region string) (health.Record, bool, error) {
	return m.store.Get(ctx, health.Key(provider, region))
}

func (m *Manager) observe(rec health.Record) {
	var v float64
	switch rec.Status {
	case health.StatusClosed:
		v = 0
	case health.StatusOpen:
		v = 1
	case health.StatusHalfOpen:
		v = 2
	}
	metrics.CircuitBreakerState.WithLabelValues(rec.Provider, rec.Region).Set(v)
}
