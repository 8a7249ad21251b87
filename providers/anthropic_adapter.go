package providers

import (
	"context"
	"time"

	"github.com/ferro-labs/llm-router/internal/ratelimit"
	"github.com/ferro-labs/llm-router/snapshot"
)

// AnthropicAdapter wraps this package's hand-rolled net/http AnthropicProvider
// (Anthropic ships no official Go SDK this gateway depends on) behind the
// the Adapter contract, mirroring OpenAIAdapter's structure.
type AnthropicAdapter struct {
	name    string
	cfg     snapshot.ProviderCfg
	baseURL string
	limiter *ratelimit.Limiter
	secrets *credentialLoader
}

// NewAnthropicAdapter builds an AnthropicAdapter for the "anthropic" entry
// of cfg.
func NewAnthropicAdapter(cfg snapshot.ProviderCfg, secretStore SecretStore, baseURL string) *AnthropicAdapter {
	return &AnthropicAdapter{
		name:    "anthropic",
		cfg:     cfg,
		baseURL: baseURL,
		limiter: ratelimit.New(tpmToPerSecond(cfg.RateLimits.TPM), tpmBurst(cfg.RateLimits.TPM)),
		secrets: newCredentialLoader(secretStore, cfg.SecretID),
	}
}

// Name implements Adapter.
func (a *AnthropicAdapter) Name() string { return a.name }

// Capabilities implements Adapter.
func (a *AnthropicAdapter) Capabilities(model string) (snapshot.ModelCfg, bool) {
	m, ok := a.cfg.Models[model]
	return m, ok
}

// Limits implements Adapter.
func (a *AnthropicAdapter) Limits() snapshot.RateLimits { return a.cfg.RateLimits }

// CanFulfill implements Adapter.
func (a *AnthropicAdapter) CanFulfill(req GenerateRequest) bool {
	m, ok := a.Capabilities(req.Model)
	return ok && CanFulfillModel(m, req)
}

// Generate implements Adapter.
func (a *AnthropicAdapter) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, *AdapterError) {
	m, ok := a.Capabilities(req.Model)
	if !ok || !m.Active {
		return nil, &AdapterError{Code: CodeCapability, Provider: a.name, Retryable: false, Detail: "model not configured: " + req.Model}
	}
	if !CanFulfillModel(m, req) {
		return nil, &AdapterError{Code: CodeCapability, Provider: a.name, Retryable: false, Detail: "model lacks required capability"}
	}

	if !a.limiter.AllowN(float64(estimateTokens(req, m.MaxOutputTokens))) {
		return nil, &AdapterError{Code: CodeRateLimit, Provider: a.name, Retryable: true, Detail: "local token bucket exhausted"}
	}

	return a.rotateKey(ctx, req, m)
}

func (a *AnthropicAdapter) rotateKey(ctx context.Context, req GenerateRequest, m snapshot.ModelCfg) (*GenerateResult, *AdapterError) {
	creds, err := a.secrets.load(ctx)
	if err != nil {
		return nil, &AdapterError{Code: CodeAuth, Provider: a.name, Status: 500, Retryable: false, Detail: err.Error()}
	}

	result, aerr := a.attempt(ctx, req, m, creds.Current)
	if aerr == nil || aerr.Code != CodeAuth || creds.Previous == "" {
		return result, aerr
	}

	result, aerr = a.attempt(ctx, req, m, creds.Previous)
	a.secrets.discardPrevious()
	return result, aerr
}

func (a *AnthropicAdapter) attempt(ctx context.Context, req GenerateRequest, m snapshot.ModelCfg, apiKey string) (*GenerateResult, *AdapterError) {
	client, err := NewAnthropic(apiKey, a.baseURL)
	if err != nil {
		return nil, &AdapterError{Code: CodeUnknown, Provider: a.name, Retryable: true, Detail: err.Error()}
	}

	maxTokens := req.MaxTokens
	temp := req.Temperature
	pr := Request{
		Model:       req.Model,
		Messages:    AssembleMessages(req.History, req.Prompt),
		MaxTokens:   &maxTokens,
		Temperature: &temp,
	}

	start := time.Now()
	resp, err := client.Complete(ctx, pr)
	latency := time.Since(start)
	if err != nil {
		return nil, classify(a.name, err)
	}

	return &GenerateResult{
		Text:  firstChoiceText(resp),
		Usage: resp.Usage,
		Meta: GenerateMeta{
			Provider:  a.name,
			Model:     resp.Model,
			Region:    req.Region,
			LatencyMs: latency.Milliseconds(),
			Timestamp: time.Now(),
			Features:  featureList(m),
		},
	}, nil
}
