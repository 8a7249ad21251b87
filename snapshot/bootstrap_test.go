package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

const testYAML = `
version: v1
providers:
  openai:
    active: true
    secretId: openai/prod
    defaultModel: gpt-4o
    rolloutPercentage: 100
    models:
      gpt-4o:
        active: true
        rolloutPercentage: 50
        tokenCost:
          prompt: 0.005
          completion: 0.015
        capabilities: [chat, vision]
routing:
  defaultProvider: openai
  defaultModel: gpt-4o
  weights:
    cost: 0.25
    quality: 0.25
    latency: 0.25
    availability: 0.25
featureFlags:
  enable_bedrock: false
`

func TestLoadYAML(t *testing.T) {
	snap, err := LoadYAML([]byte(testYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	model, ok := snap.GetModel("openai", "gpt-4o")
	if !ok {
		t.Fatal("expected gpt-4o model")
	}
	if !model.HasCapability("vision") {
		t.Fatal("expected vision capability from YAML list")
	}
	if model.RolloutPercentage != 50 {
		t.Fatalf("expected rolloutPercentage 50, got %d", model.RolloutPercentage)
	}
}

func TestLoadFileYAMLExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	if err := os.WriteFile(path, []byte(testYAML), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	snap, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Version != "v1" {
		t.Fatalf("expected version v1, got %q", snap.Version)
	}
}

func TestFileStoreIgnoresConfigID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	if err := os.WriteFile(path, []byte(testYAML), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	a, err := store.Load("anything")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	b, err := store.Load("something-else")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if a.Version != b.Version {
		t.Fatal("expected FileStore to serve the same snapshot regardless of configID")
	}
}
