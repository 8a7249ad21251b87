package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

const testDocument = `{
	"version": "v1",
	"providers": {
		"anthropic": {
			"active": true,
			"secretId": "anthropic/prod",
			"defaultModel": "claude-3-5-sonnet",
			"rolloutPercentage": 100,
			"models": {
				"claude-3-5-sonnet": {
					"active": true,
					"rolloutPercentage": 100,
					"tokenCost": 0.003,
					"priority": 1,
					"capabilities": ["chat"]
				}
			}
		}
	},
	"routing": {
		"defaultProvider": "anthropic",
		"defaultModel": "claude-3-5-sonnet"
	}
}`

func TestSQLiteStoreImplementsStore(_ *testing.T) {
	var _ Store = (*SQLStore)(nil)
}

func TestSQLiteStoreLoadRoundTrip(t *testing.T) {
	store := newSQLiteTestStore(t)

	if err := store.Put("active", []byte(testDocument)); err != nil {
		t.Fatalf("put document: %v", err)
	}

	snap, err := store.Load("active")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Routing.DefaultProvider != "anthropic" {
		t.Fatalf("expected defaultProvider anthropic, got %q", snap.Routing.DefaultProvider)
	}
}

func TestSQLiteStoreLoadNotFound(t *testing.T) {
	store := newSQLiteTestStore(t)

	_, err := store.Load("missing")
	if err == nil {
		t.Fatal("expected ErrNotFound for missing configId")
	}
	if _, ok := err.(*ErrNotFound); !ok {
		t.Fatalf("expected *ErrNotFound, got %T", err)
	}
}

func TestSQLiteStorePutRejectsInvalidDocument(t *testing.T) {
	store := newSQLiteTestStore(t)

	err := store.Put("bad", []byte(`{"providers": {}, "routing": {}}`))
	if err == nil {
		t.Fatal("expected schema validation error for document missing version")
	}
}

func newSQLiteTestStore(t *testing.T) *SQLStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
		_ = os.Remove(path)
	})
	return store
}
