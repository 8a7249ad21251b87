package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaDoc is the JSON Schema every Config Snapshot document must satisfy
// before it is decoded into a Snapshot. It is intentionally permissive on
// provider/model-specific fields (additionalProperties defaults apply) and
// only pins down the shape the router actually depends on.
const schemaDoc = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["version", "providers", "routing"],
	"properties": {
		"version": {"type": "string", "minLength": 1},
		"providers": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"required": ["active"],
				"properties": {
					"active": {"type": "boolean"},
					"secretId": {"type": "string"},
					"defaultModel": {"type": "string"},
					"rolloutPercentage": {"type": "integer", "minimum": 0, "maximum": 100},
					"rateLimits": {
						"type": "object",
						"properties": {
							"rpm": {"type": "integer", "minimum": 0},
							"tpm": {"type": "integer", "minimum": 0}
						}
					},
					"retryConfig": {
						"type": "object",
						"properties": {
							"maxRetries": {"type": "integer", "minimum": 0},
							"initialDelayMs": {"type": "integer", "minimum": 0},
							"maxDelayMs": {"type": "integer", "minimum": 0}
						}
					},
					"models": {
						"type": "object",
						"additionalProperties": {
							"type": "object",
							"required": ["active"],
							"properties": {
								"active": {"type": "boolean"},
								"rolloutPercentage": {"type": "integer", "minimum": 0, "maximum": 100},
								"priority": {"type": "integer"},
								"contextSize": {"type": "integer", "minimum": 0},
								"maxOutputTokens": {"type": "integer", "minimum": 0},
								"capabilities": {
									"type": "array",
									"items": {"type": "string"}
								}
							}
						}
					}
				}
			}
		},
		"routing": {
			"type": "object",
			"properties": {
				"weights": {
					"type": "object",
					"properties": {
						"cost": {"type": "number", "minimum": 0},
						"quality": {"type": "number", "minimum": 0},
						"latency": {"type": "number", "minimum": 0},
						"availability": {"type": "number", "minimum": 0}
					}
				},
				"defaultProvider": {"type": "string"},
				"defaultModel": {"type": "string"},
				"rules": {"type": "array"}
			}
		},
		"featureFlags": {
			"type": "object",
			"additionalProperties": {"type": "boolean"}
		}
	}
}`

var (
	schemaOnce   sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr    error
)

const schemaResourceName = "config-snapshot.json"

func compiledSnapshotSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaResourceName, bytes.NewReader([]byte(schemaDoc))); err != nil {
			schemaErr = fmt.Errorf("snapshot: loading schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaResourceName)
	})
	return compiledSchema, schemaErr
}

// Validate checks raw JSON against the Config Snapshot schema. It is called
// by DecodeJSON and LoadYAML before decoding, and by SQLStore.Put before a
// document is stored.
func Validate(data []byte) error {
	schema, err := compiledSnapshotSchema()
	if err != nil {
		return err
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("snapshot: invalid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("snapshot: document failed schema validation: %w", err)
	}
	return nil
}
