// Package snapshot implements the Config Snapshot: an immutable, per-request
// view of active providers, models, rollout percentages, the routing weight
// table, and feature flags. Snapshots are loaded by an opaque id from a SQL
// store (or a bootstrap YAML/JSON file for local development) and never
// mutated once handed to a caller — a reload produces a new Snapshot value,
// never an in-place edit.
package snapshot

import "fmt"

// Snapshot is an immutable view of the routing configuration active for one
// request. Callers must treat every field as read-only.
type Snapshot struct {
	Version       string
	Providers     map[string]ProviderCfg
	Routing       RoutingCfg
	FeatureFlags  map[string]bool
}

// ProviderCfg describes one upstream provider's configuration.
type ProviderCfg struct {
	Active            bool
	SecretID          string
	DefaultModel      string
	RateLimits        RateLimits
	RetryConfig       RetryConfig
	RolloutPercentage int
	Models            map[string]ModelCfg
}

// RateLimits caps requests-per-minute and tokens-per-minute for a provider.
type RateLimits struct {
	RPM int
	TPM int
}

// RetryConfig bounds the fallback loop's backoff for a provider's candidates.
type RetryConfig struct {
	MaxRetries     int
	InitialDelayMs int
	MaxDelayMs     int
}

// ModelCfg describes one model offered by a provider.
type ModelCfg struct {
	Active            bool
	RolloutPercentage int
	TokenCost         TokenCost
	Priority          int
	Capabilities      map[string]struct{}
	ContextSize       int
	MaxOutputTokens   int
	StreamingSupport  bool
	FunctionCalling   bool
	Vision            bool
}

// HasCapability reports whether the model was configured with tag.
func (m ModelCfg) HasCapability(tag string) bool {
	_, ok := m.Capabilities[tag]
	return ok
}

// RoutingCfg holds the scoring weights and static defaults used by the
// Model Router, plus conditional override rules.
type RoutingCfg struct {
	Weights         ScoreWeights
	DefaultProvider string
	DefaultModel    string
	Rules           []RoutingRule
}

// ScoreWeights are the four scoring coefficients from the router contract. They are
// expected (but not required) to sum to 1.0.
type ScoreWeights struct {
	Cost         float64
	Quality      float64
	Latency      float64
	Availability float64
}

// RoutingRule is a single conditional override (reserved for future use by
// the Router; the v1 scoring pipeline does not consult it, but the shape is
// part of the config schema so operators can stage rules ahead of rollout).
type RoutingRule struct {
	Key       string
	Value     string
	Provider  string
	Model     string
}

// Get looks up a provider config by name.
func (s Snapshot) Get(provider string) (ProviderCfg, bool) {
	p, ok := s.Providers[provider]
	return p, ok
}

// GetModel looks up a model config for provider+model.
func (s Snapshot) GetModel(provider, model string) (ModelCfg, bool) {
	p, ok := s.Providers[provider]
	if !ok {
		return ModelCfg{}, false
	}
	m, ok := p.Models[model]
	return m, ok
}

// ErrNotFound is returned by a Store when no snapshot exists for the given id.
type ErrNotFound struct {
	ID string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("config snapshot not found: %s", e.ID)
}

// Store loads immutable Snapshot values by opaque configId.
type Store interface {
	Load(configID string) (Snapshot, error)
}
