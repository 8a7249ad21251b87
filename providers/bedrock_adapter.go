package providers

import (
	"context"
	"time"

	"github.com/ferro-labs/llm-router/internal/ratelimit"
	"github.com/ferro-labs/llm-router/snapshot"
)

// BedrockAdapter wraps this package's aws-sdk-go-v2-backed BedrockProvider
// behind the Adapter contract. Bedrock authenticates via the ambient AWS
// credential chain (SigV4, resolved by the SDK itself), so this adapter has
// no SecretStore/RotateKey concern — there is no external secret to fetch
// or rotate for this particular upstream.
type BedrockAdapter struct {
	name    string
	cfg     snapshot.ProviderCfg
	limiter *ratelimit.Limiter
	client  *BedrockProvider
}

// NewBedrockAdapter builds a BedrockAdapter for the "bedrock" entry of cfg,
// constructing its AWS client once for region.
func NewBedrockAdapter(cfg snapshot.ProviderCfg, region string) (*BedrockAdapter, error) {
	client, err := NewBedrock(region)
	if err != nil {
		return nil, err
	}
	return &BedrockAdapter{
		name:    "bedrock",
		cfg:     cfg,
		limiter: ratelimit.New(tpmToPerSecond(cfg.RateLimits.TPM), tpmBurst(cfg.RateLimits.TPM)),
		client:  client,
	}, nil
}

// Name implements Adapter.
func (a *BedrockAdapter) Name() string { return a.name }

// Capabilities implements Adapter.
func (a *BedrockAdapter) Capabilities(model string) (snapshot.ModelCfg, bool) {
	m, ok := a.cfg.Models[model]
	return m, ok
}

// Limits implements Adapter.
func (a *BedrockAdapter) Limits() snapshot.RateLimits { return a.cfg.RateLimits }

// CanFulfill implements Adapter.
func (a *BedrockAdapter) CanFulfill(req GenerateRequest) bool {
	m, ok := a.Capabilities(req.Model)
	return ok && CanFulfillModel(m, req)
}

// Generate implements Adapter.
func (a *BedrockAdapter) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, *AdapterError) {
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

	maxTokens := req.MaxTokens
	temp := req.Temperature
	pr := Request{
		Model:       req.Model,
		Messages:    AssembleMessages(req.History, req.Prompt),
		MaxTokens:   &maxTokens,
		Temperature: &temp,
	}

	start := time.Now()
	resp, err := a.client.Complete(ctx, pr)
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
