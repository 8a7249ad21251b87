package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a bootstrap Config Snapshot document from disk for local
// development and single-instance deployments that don't run a Provider
// Config table. YAML and JSON are both accepted; format is picked by file
// extension, defaulting to YAML.
func LoadFile(path string) (Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: reading %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return DecodeJSON(raw)
	}
	return LoadYAML(raw)
}

// LoadYAML decodes a bootstrap document from YAML bytes. The document is
// first converted to JSON so it goes through the same schema validation as
// documents coming off the wire.
func LoadYAML(raw []byte) (Snapshot, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: parsing YAML: %w", err)
	}

	asJSON, err := json.Marshal(doc)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: re-encoding document: %w", err)
	}
	if err := Validate(asJSON); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: schema validation: %w", err)
	}
	return Decode(doc)
}

// FileStore serves a single Snapshot loaded once from a bootstrap file,
// ignoring the configID argument. It satisfies Store for local/dev use where
// there is exactly one active configuration and no Provider Config table.
type FileStore struct {
	snapshot Snapshot
}

// NewFileStore loads path once and returns a Store backed by the result.
func NewFileStore(path string) (*FileStore, error) {
	snap, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return &FileStore{snapshot: snap}, nil
}

// Load implements Store. The configID is ignored: a FileStore only ever
// serves the one snapshot it was constructed with.
func (f *FileStore) Load(_ string) (Snapshot, error) {
	return f.snapshot, nil
}
