package providers

import (
	"context"
	"time"

	"github.com/ferro-labs/llm-router/internal/ratelimit"
	"github.com/ferro-labs/llm-router/snapshot"
)

// OpenAIAdapter wraps this package's openai-go-backed OpenAIProvider behind
// the Adapter contract: capability gating sourced from the
// Config Snapshot, a local ratelimit.Limiter token bucket sized from
// ProviderCfg.RateLimits, and single-flight credential loading with a
// one-shot retry against the previous key on AUTH failure.
type OpenAIAdapter struct {
	name    string
	cfg     snapshot.ProviderCfg
	baseURL string
	limiter *ratelimit.Limiter
	secrets *credentialLoader
}

// NewOpenAIAdapter builds an OpenAIAdapter for the "openai" entry of cfg.
// secretStore resolves ProviderCfg.SecretID into API credentials.
func NewOpenAIAdapter(cfg snapshot.ProviderCfg, secretStore SecretStore, baseURL string) *OpenAIAdapter {
	return &OpenAIAdapter{
		name:    "openai",
		cfg:     cfg,
		baseURL: baseURL,
		limiter: ratelimit.New(tpmToPerSecond(cfg.RateLimits.TPM), tpmBurst(cfg.RateLimits.TPM)),
		secrets: newCredentialLoader(secretStore, cfg.SecretID),
	}
}

// Name implements Adapter.
func (a *OpenAIAdapter) Name() string { return a.name }

// Capabilities implements Adapter.
func (a *OpenAIAdapter) Capabilities(model string) (snapshot.ModelCfg, bool) {
	m, ok := a.cfg.Models[model]
	return m, ok
}

// Limits implements Adapter.
func (a *OpenAIAdapter) Limits() snapshot.RateLimits { return a.cfg.RateLimits }

// CanFulfill implements Adapter.
func (a *OpenAIAdapter) CanFulfill(req GenerateRequest) bool {
	m, ok := a.Capabilities(req.Model)
	return ok && CanFulfillModel(m, req)
}

// Generate implements Adapter.
func (a *OpenAIAdapter) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, *AdapterError) {
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

// rotateKey performs the credential-aware attempt, retrying exactly once
// against the previous key on an AUTH failure.
func (a *OpenAIAdapter) rotateKey(ctx context.Context, req GenerateRequest, m snapshot.ModelCfg) (*GenerateResult, *AdapterError) {
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

func (a *OpenAIAdapter) attempt(ctx context.Context, req GenerateRequest, m snapshot.ModelCfg, apiKey string) (*GenerateResult, *AdapterError) {
	client, err := NewOpenAI(apiKey, a.baseURL)
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
	if len(req.Tools) > 0 {
		pr.Tools = req.Tools
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

// tpmToPerSecond converts a tokens-per-minute cap into the per-second
// refill rate the ratelimit.Limiter constructor expects.
func tpmToPerSecond(tpm int) float64 {
	if tpm <= 0 {
		return unboundedTPM / 60
	}
	return float64(tpm) / 60
}

// tpmBurst returns the bucket capacity for an unset/non-positive rate limit:
// a provider entry that omits rateLimits.tpm is treated as unthrottled
// rather than always-denying.
func tpmBurst(tpm int) float64 {
	if tpm <= 0 {
		return unboundedTPM
	}
	return float64(tpm)
}

// unboundedTPM stands in for "no configured limit" — large enough that no
// single request's estimate will exhaust it.
const unboundedTPM = 1 << 30
