package health

import (
	"context"
	"testing"
	"time"
)

func TestKeyFormat(t *testing.T) {
	if got, want := Key("openai", "us-east-1"), "openai#us-east-1"; got != want {
		t.Fatalf("Key() = %q, want %q", got, want)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()
	_, ok, err := store.Get(context.Background(), Key("openai", "us-east-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a key never written")
	}
}

func TestMemoryStorePutGetRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	rec := NewRecord("openai", "us-east-1", now, 7*24*time.Hour)
	rec.Status = StatusOpen
	opened := now
	rec.OpenedTimestamp = &opened

	if err := store.Put(context.Background(), rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := store.Get(context.Background(), rec.Key())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected record to be found")
	}
	if got.Status != StatusOpen {
		t.Fatalf("expected status OPEN, got %s", got.Status)
	}
	if got.OpenedTimestamp == nil {
		t.Fatal("expected openedTimestamp to round-trip")
	}
}

func TestMemoryStoreGetExpiredTTL(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecord("openai", "us-east-1", time.Now().Add(-time.Hour), time.Minute)
	if err := store.Put(context.Background(), rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	_, ok, err := store.Get(context.Background(), rec.Key())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected expired record to be reaped on read")
	}
}

func TestMemoryStorePutIfVersionConditional(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecord("openai", "us-east-1", time.Now(), time.Hour)

	ok, err := store.PutIfVersion(context.Background(), rec, "")
	if err != nil {
		t.Fatalf("put if version (create): %v", err)
	}
	if !ok {
		t.Fatal("expected initial conditional put to succeed when no record exists")
	}

	ok, err = store.PutIfVersion(context.Background(), rec, "")
	if err != nil {
		t.Fatalf("put if version (recreate): %v", err)
	}
	if ok {
		t.Fatal("expected conditional put to fail when a record already exists and expectStatus is empty")
	}

	rec.Status = StatusHalfOpen
	ok, err = store.PutIfVersion(context.Background(), rec, StatusClosed)
	if err != nil {
		t.Fatalf("put if version (transition): %v", err)
	}
	if !ok {
		t.Fatal("expected conditional put to succeed when expectStatus matches stored status")
	}
}

func TestRecordAvgLatencyMsNoData(t *testing.T) {
	rec := NewRecord("openai", "us-east-1", time.Now(), time.Hour)
	if _, ok := rec.AvgLatencyMs(); ok {
		t.Fatal("expected ok=false when no successes have been recorded")
	}
}

func TestRecordAvgLatencyMs(t *testing.T) {
	rec := Record{TotalSuccesses: 4, TotalLatencyMs: 800}
	avg, ok := rec.AvgLatencyMs()
	if !ok {
		t.Fatal("expected ok=true")
	}
	if avg != 200 {
		t.Fatalf("expected avg 200, got %v", avg)
	}
}
