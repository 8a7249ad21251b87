package snapshot

import (
	"encoding/json"
	"fmt"
)

// Document is the wire format for a Config Snapshot: the shape stored in the
// Provider Config table and accepted by bootstrap YAML/JSON files. Decode
// converts a Document into an immutable Snapshot.
type Document struct {
	Version      string                    `json:"version" yaml:"version"`
	Providers    map[string]providerDoc    `json:"providers" yaml:"providers"`
	Routing      routingDoc                `json:"routing" yaml:"routing"`
	FeatureFlags map[string]bool           `json:"featureFlags,omitempty" yaml:"featureFlags"`
}

type providerDoc struct {
	Active            bool                 `json:"active" yaml:"active"`
	SecretID          string               `json:"secretId" yaml:"secretId"`
	DefaultModel      string               `json:"defaultModel" yaml:"defaultModel"`
	RateLimits        rateLimitsDoc        `json:"rateLimits" yaml:"rateLimits"`
	RetryConfig       retryConfigDoc       `json:"retryConfig" yaml:"retryConfig"`
	RolloutPercentage int                  `json:"rolloutPercentage" yaml:"rolloutPercentage"`
	Models            map[string]modelDoc  `json:"models,omitempty" yaml:"models"`
}

type rateLimitsDoc struct {
	RPM int `json:"rpm" yaml:"rpm"`
	TPM int `json:"tpm" yaml:"tpm"`
}

type retryConfigDoc struct {
	MaxRetries     int `json:"maxRetries" yaml:"maxRetries"`
	InitialDelayMs int `json:"initialDelayMs" yaml:"initialDelayMs"`
	MaxDelayMs     int `json:"maxDelayMs" yaml:"maxDelayMs"`
}

type modelDoc struct {
	Active            bool       `json:"active" yaml:"active"`
	RolloutPercentage int        `json:"rolloutPercentage" yaml:"rolloutPercentage"`
	TokenCost         TokenCost  `json:"tokenCost" yaml:"tokenCost"`
	Priority          int        `json:"priority" yaml:"priority"`
	Capabilities      []string   `json:"capabilities,omitempty" yaml:"capabilities"`
	ContextSize       int        `json:"contextSize" yaml:"contextSize"`
	MaxOutputTokens   int        `json:"maxOutputTokens" yaml:"maxOutputTokens"`
	StreamingSupport  bool       `json:"streamingSupport" yaml:"streamingSupport"`
	FunctionCalling   bool       `json:"functionCalling" yaml:"functionCalling"`
	Vision            bool       `json:"vision" yaml:"vision"`
}

type routingDoc struct {
	Weights         weightsDoc    `json:"weights" yaml:"weights"`
	DefaultProvider string        `json:"defaultProvider" yaml:"defaultProvider"`
	DefaultModel    string        `json:"defaultModel" yaml:"defaultModel"`
	Rules           []ruleDoc     `json:"rules,omitempty" yaml:"rules"`
}

type weightsDoc struct {
	Cost         float64 `json:"cost" yaml:"cost"`
	Quality      float64 `json:"quality" yaml:"quality"`
	Latency      float64 `json:"latency" yaml:"latency"`
	Availability float64 `json:"availability" yaml:"availability"`
}

type ruleDoc struct {
	Key      string `json:"key" yaml:"key"`
	Value    string `json:"value" yaml:"value"`
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`
}

// Decode converts a wire Document into an immutable Snapshot.
func Decode(doc Document) (Snapshot, error) {
	if doc.Version == "" {
		return Snapshot{}, fmt.Errorf("snapshot: version is required")
	}

	providers := make(map[string]ProviderCfg, len(doc.Providers))
	for name, pd := range doc.Providers {
		models := make(map[string]ModelCfg, len(pd.Models))
		for modelName, md := range pd.Models {
			caps := make(map[string]struct{}, len(md.Capabilities))
			for _, c := range md.Capabilities {
				caps[c] = struct{}{}
			}
			models[modelName] = ModelCfg{
				Active:            md.Active,
				RolloutPercentage: md.RolloutPercentage,
				TokenCost:         md.TokenCost,
				Priority:          md.Priority,
				Capabilities:      caps,
				ContextSize:       md.ContextSize,
				MaxOutputTokens:   md.MaxOutputTokens,
				StreamingSupport:  md.StreamingSupport,
				FunctionCalling:   md.FunctionCalling,
				Vision:            md.Vision,
			}
		}
		providers[name] = ProviderCfg{
			Active:       pd.Active,
			SecretID:     pd.SecretID,
			DefaultModel: pd.DefaultModel,
			RateLimits:   RateLimits{RPM: pd.RateLimits.RPM, TPM: pd.RateLimits.TPM},
			RetryConfig: RetryConfig{
				MaxRetries:     pd.RetryConfig.MaxRetries,
				InitialDelayMs: pd.RetryConfig.InitialDelayMs,
				MaxDelayMs:     pd.RetryConfig.MaxDelayMs,
			},
			RolloutPercentage: pd.RolloutPercentage,
			Models:            models,
		}
	}

	rules := make([]RoutingRule, 0, len(doc.Routing.Rules))
	for _, rd := range doc.Routing.Rules {
		rules = append(rules, RoutingRule{Key: rd.Key, Value: rd.Value, Provider: rd.Provider, Model: rd.Model})
	}

	return Snapshot{
		Version:   doc.Version,
		Providers: providers,
		Routing: RoutingCfg{
			Weights: ScoreWeights{
				Cost:         doc.Routing.Weights.Cost,
				Quality:      doc.Routing.Weights.Quality,
				Latency:      doc.Routing.Weights.Latency,
				Availability: doc.Routing.Weights.Availability,
			},
			DefaultProvider: doc.Routing.DefaultProvider,
			DefaultModel:    doc.Routing.DefaultModel,
			Rules:           rules,
		},
		FeatureFlags: doc.FeatureFlags,
	}, nil
}

// DecodeJSON parses raw JSON into a Snapshot, validating it against the
// embedded JSON Schema first (see Validate).
func DecodeJSON(data []byte) (Snapshot, error) {
	if err := Validate(data); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: schema validation: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: parsing JSON: %w", err)
	}
	return Decode(doc)
}
