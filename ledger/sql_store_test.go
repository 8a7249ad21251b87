package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "ledger.db")
	s, err := NewSQLiteStore(dsn)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLStore_AppendAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{RequestID: "r1", FamilyID: "fam1", Provider: "openai", Model: "gpt-4o", PromptTokens: 10, CompletionTokens: 5, Cost: 0.01, Timestamp: base, Success: true},
		{RequestID: "r2", FamilyID: "fam1", Provider: "anthropic", Model: "claude-3-haiku-20240307", PromptTokens: 20, CompletionTokens: 8, Cost: 0.02, Timestamp: base.Add(time.Minute), Success: true},
	}
	for _, e := range entries {
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent() returned %d entries, want 2", len(got))
	}
	if got[0].RequestID != "r2" {
		t.Errorf("Recent()[0].RequestID = %q, want newest-first order (r2)", got[0].RequestID)
	}
}

func TestSQLStore_RecentDefaultsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Append(ctx, Entry{RequestID: "r1", FamilyID: "fam1", Provider: "openai", Model: "gpt-4o", Timestamp: time.Now()}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	got, err := s.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Recent(0) returned %d entries, want 1", len(got))
	}
}
