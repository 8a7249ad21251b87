package main

import (
	"context"
	"sort"

	"github.com/ferro-labs/llm-router/breaker"
	"github.com/ferro-labs/llm-router/health"
	"github.com/ferro-labs/llm-router/internal/admin"
	"github.com/ferro-labs/llm-router/ledger"
	"github.com/ferro-labs/llm-router/snapshot"
)

// snapshotAdminView adapts snapshot.Store to admin.SnapshotView.
type snapshotAdminView struct {
	store snapshot.Store
}

func (v snapshotAdminView) Load(configID string) (interface{}, error) {
	return v.store.Load(configID)
}

// healthAdminView dumps the Provider Health Store for every provider
// configured in the active snapshot, restricted to this deployment's
// single SERVICE_REGION — health records are keyed per (provider, region)
// and a one-region deployment never needs a cross-region scan.
type healthAdminView struct {
	store    health.Store
	snapshots snapshot.Store
	configID string
	region   string
}

func (v healthAdminView) Dump() []admin.HealthRecordView {
	snap, err := v.snapshots.Load(v.configID)
	if err != nil {
		return nil
	}
	var out []admin.HealthRecordView
	for name := range snap.Providers {
		rec, ok, err := v.store.Get(context.Background(), health.Key(name, v.region))
		if err != nil || !ok {
			continue
		}
		out = append(out, admin.HealthRecordView{
			Provider:             name,
			Region:               v.region,
			Status:               string(rec.Status),
			ConsecutiveFailures:  rec.ConsecutiveFailures,
			ConsecutiveSuccesses: rec.CurrentHalfOpenSuccesses,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

// breakerAdminView dumps the Circuit Breaker Manager's view of every
// configured provider for this deployment's region.
type breakerAdminView struct {
	manager  *breaker.Manager
	snapshots snapshot.Store
	configID string
	region   string
}

func (v breakerAdminView) Dump() []admin.HealthRecordView {
	snap, err := v.snapshots.Load(v.configID)
	if err != nil {
		return nil
	}
	var out []admin.HealthRecordView
	for name := range snap.Providers {
		rec, ok, err := v.manager.Snapshot(context.Background(), name, v.region)
		if err != nil || !ok {
			continue
		}
		out = append(out, admin.HealthRecordView{
			Provider:             name,
			Region:               v.region,
			Status:               string(rec.Status),
			ConsecutiveFailures:  rec.ConsecutiveFailures,
			ConsecutiveSuccesses: rec.CurrentHalfOpenSuccesses,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

// ledgerAdminView adapts ledger.Store to admin.LedgerView.
type ledgerAdminView struct {
	store ledger.Store
}

// Recent returns the store's most recent entries, filtered to familyID when
// non-empty. ledger.Store has no family-indexed query, so a family-scoped
// request over-fetches and filters in-process; callers needing the full
// limit for a busy family should raise limit accordingly.
func (v ledgerAdminView) Recent(limit int, familyID string) ([]admin.LedgerEntryView, error) {
	fetchLimit := limit
	if familyID != "" {
		fetchLimit = limit * 10
	}
	entries, err := v.store.Recent(context.Background(), fetchLimit)
	if err != nil {
		return nil, err
	}
	out := make([]admin.LedgerEntryView, 0, limit)
	for _, e := range entries {
		if familyID != "" && e.FamilyID != familyID {
			continue
		}
		out = append(out, admin.LedgerEntryView{
			FamilyID:  e.FamilyID,
			Provider:  e.Provider,
			Model:     e.Model,
			Cost:      e.Cost,
			Timestamp: e.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
