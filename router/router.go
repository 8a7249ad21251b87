// Package router implements the Model Router: it loads a
// Config Snapshot, enumerates eligible (provider, model) candidates, scores
// them, and drives the attempt loop against the Circuit Breaker Manager and
// Provider Adapters, writing a Ledger Entry on every success.
package router

import (
	"context"
	"time"

	"github.com/ferro-labs/llm-router/authz"
	"github.com/ferro-labs/llm-router/breaker"
	"github.com/ferro-labs/llm-router/internal/logging"
	"github.com/ferro-labs/llm-router/internal/metrics"
	"github.com/ferro-labs/llm-router/ledger"
	"github.com/ferro-labs/llm-router/providers"
	"github.com/ferro-labs/llm-router/snapshot"
)

// Code is the router-facing error taxonomy: the six adapter-normalized
// codes plus the two router-only ones from the router contract.
type Code string

const (
	CodeRateLimit         Code = "RATE_LIMIT"
	CodeAuth              Code = "AUTH"
	CodeContent           Code = "CONTENT"
	CodeCapability        Code = "CAPABILITY"
	CodeTimeout           Code = "TIMEOUT"
	CodeUnknown           Code = "UNKNOWN"
	CodeNoModelAvailable  Code = "NO_MODEL_AVAILABLE"
	CodeInternalError     Code = "INTERNAL_ERROR"
)

// Failure is the Error arm of the Result tagged union from the router contract.
type Failure struct {
	Code      Code
	Provider  string
	Status    int
	Retryable bool
	Detail    string
}

func (f *Failure) Error() string { return string(f.Code) + ": " + f.Detail }

// Tokens mirrors the Success arm's tokens sub-object.
type Tokens struct {
	Prompt     int
	Completion int
	Total      int
}

// Meta mirrors the Success arm's meta sub-object.
type Meta struct {
	Provider  string
	Model     string
	Features  []string
	Region    string
	LatencyMs int64
	Timestamp time.Time
}

// Success is the Success arm of the Result tagged union.
type Success struct {
	Text   string
	Tokens Tokens
	Meta   Meta
}

// Outcome is the tagged union the contract specifies: exactly one of Success
// or Failure is non-nil.
type Outcome struct {
	Success *Success
	Failure *Failure
}

// HistoryTurn is one conversationHistory entry from the request envelope.
type HistoryTurn struct {
	Role    string
	Content string
}

// Request is the Router's view of an inbound chat request, matching the request envelope.
type Request struct {
	RequestID             string
	FamilyID               string
	ProfileID              string
	Region                 string
	Prompt                 string
	PreferredProvider      string
	PreferredModel         string
	MaxTokens              int
	Temperature            float64
	RequiredCapabilities   map[string]struct{}
	Tools                  []providers.Tool
	ConversationHistory    []HistoryTurn
	EstimatedInputTokens   int
	EstimatedOutputTokens  int
	ConfigID               string
}

// Router implements Route, the sole entry point into the Model Router.
type Router struct {
	snapshots snapshot.Store
	adapters  map[string]providers.Adapter
	breakers  *breaker.Manager
	ledger    ledger.Store
	debiter   Debiter
	defaultConfigID string
}

// Debiter spends from a family's token balance; implemented by
// authz.SQLDirectory in production. Debits are best-effort and never block
// or fail the response.
type Debiter interface {
	DebitTokens(ctx context.Context, familyID string, amount int64) error
}

// New builds a Router. adapters is keyed by provider name, matching
// Snapshot.Providers' keys.
func New(snapshots snapshot.Store, adapters map[string]providers.Adapter, breakers *breaker.Manager, ledgerStore ledger.Store, debiter Debiter, defaultConfigID string) *Router {
	return &Router{
		snapshots:       snapshots,
		adapters:        adapters,
		breakers:        breakers,
		ledger:          ledgerStore,
		debiter:         debiter,
		defaultConfigID: defaultConfigID,
	}
}

// Route implements the 5-stage pipeline of the router contract.
func (r *Router) Route(ctx context.Context, req Request, identity *authz.Identity) (*Outcome, error) {
	if identity != nil {
		ctx = logging.WithFamilyID(ctx, identity.FamilyID)
	}
	log := logging.FromContext(ctx)

	configID := req.ConfigID
	if configID == "" {
		configID = r.defaultConfigID
	}
	snap, err := r.snapshots.Load(configID)
	if err != nil {
		log.Error("router: failed to load config snapshot", "config_id", configID, "error", err)
		return &Outcome{Failure: &Failure{Code: CodeUnknown, Retryable: false, Detail: err.Error()}}, nil
	}

	candidates := r.enumerate(snap, req)
	metrics.RouterCandidatesConsidered.WithLabelValues("scored").Observe(float64(len(candidates)))
	if len(candidates) == 0 {
		log.Warn("router: no eligible candidates", "preferred_provider", req.PreferredProvider, "preferred_model", req.PreferredModel)
		return &Outcome{Failure: &Failure{Code: CodeNoModelAvailable, Retryable: false, Detail: "no eligible candidates"}}, nil
	}

	score(ctx, candidates, snap.Routing.Weights, r.breakers, req.Region)
	sortCandidates(candidates)

	return r.attempt(ctx, req, identity, candidates), nil
}

// enumerate builds the eligible candidate list.
func (r *Router) enumerate(snap snapshot.Snapshot, req Request) []*candidate {
	var out []*candidate
	hash := rolloutHash(req.FamilyID, req.RequestID)

	for providerName, pcfg := range snap.Providers {
		if !pcfg.Active {
			continue
		}
		if req.PreferredProvider != "" && req.PreferredProvider != providerName {
			continue
		}
		adapter, ok := r.adapters[providerName]
		if !ok {
			continue
		}
		for modelName, mcfg := range pcfg.Models {
			if !mcfg.Active {
				continue
			}
			if req.PreferredModel != "" && req.PreferredModel != modelName {
				continue
			}
			if !passesRollout(hash, pcfg.RolloutPercentage) || !passesRollout(hash, mcfg.RolloutPercentage) {
				continue
			}
			genReq := toGenerateRequest(req, modelName)
			if !adapter.CanFulfill(genReq) {
				continue
			}
			in, out2 := estimateTokens(req.Prompt, mcfg.MaxOutputTokens, req.EstimatedInputTokens, req.EstimatedOutputTokens)
			out = append(out, &candidate{
				Provider:        providerName,
				Model:           modelName,
				ProviderCfg:     pcfg,
				ModelCfg:        mcfg,
				Adapter:         adapter,
				EstimatedInput:  in,
				EstimatedOutput: out2,
			})
		}
	}
	return out
}

// attempt drives the fallback loop of the router contract step 4 over the
// already-sorted candidate list.
func (r *Router) attempt(ctx context.Context, req Request, identity *authz.Identity, candidates []*candidate) *Outcome {
	log := logging.FromContext(ctx)
	var last *Failure
	attempted := false

	for i, c := range candidates {
		region := req.Region
		allowed, err := r.breakers.IsAllowed(ctx, c.Provider, region)
		if err != nil {
			log.Error("router: circuit breaker admission check failed", "provider", c.Provider, "region", region, "error", err)
			last = &Failure{Code: CodeInternalError, Provider: c.Provider, Retryable: false, Detail: err.Error()}
			continue
		}
		if !allowed {
			metrics.RouterAttemptsTotal.WithLabelValues(c.Provider, c.Model, "skipped_breaker_open").Inc()
			continue
		}

		attempted = true
		genReq := toGenerateRequest(req, c.Model)
		genReq.Region = region

		start := time.Now()
		result, aerr := c.Adapter.Generate(ctx, genReq)
		latency := time.Since(start)

		if aerr == nil {
			metrics.RouterAttemptsTotal.WithLabelValues(c.Provider, c.Model, "success").Inc()
			_ = r.breakers.RecordSuccess(ctx, c.Provider, region, uint64(latency.Milliseconds()))
			return r.onSuccess(ctx, req, identity, c, result)
		}

		metrics.RouterAttemptsTotal.WithLabelValues(c.Provider, c.Model, "failure").Inc()
		failure := &Failure{Code: Code(aerr.Code), Provider: c.Provider, Status: aerr.Status, Retryable: aerr.Retryable, Detail: aerr.Detail}
		last = failure

		switch failure.Code {
		case CodeContent, CodeCapability:
			// Request-intrinsic: no health impact, no fallback.
			return &Outcome{Failure: failure}
		case CodeAuth:
			_ = r.breakers.RecordFailure(ctx, c.Provider, region)
		default:
			if failure.Retryable {
				_ = r.breakers.RecordFailure(ctx, c.Provider, region)
			}
		}

		if i < len(candidates)-1 {
			backoff := retryBackoff(c.ProviderCfg.RetryConfig, i+1)
			select {
			case <-ctx.Done():
				return &Outcome{Failure: &Failure{Code: CodeTimeout, Provider: c.Provider, Retryable: true, Detail: ctx.Err().Error()}}
			case <-time.After(backoff):
			}
		}
	}

	if !attempted && last == nil {
		log.Warn("router: every candidate's circuit breaker denied admission", "candidates", len(candidates))
		return &Outcome{Failure: &Failure{Code: CodeNoModelAvailable, Retryable: false, Detail: "every candidate's circuit breaker denied admission"}}
	}
	if last == nil {
		last = &Failure{Code: CodeNoModelAvailable, Retryable: false, Detail: "no candidate attempted"}
	}
	log.Warn("router: exhausted all candidates", "candidates", len(candidates), "last_code", last.Code, "last_provider", last.Provider)
	return &Outcome{Failure: last}
}

func (r *Router) onSuccess(ctx context.Context, req Request, identity *authz.Identity, c *candidate, result *providers.GenerateResult) *Outcome {
	metrics.TokensInput.WithLabelValues(c.Provider, c.Model).Add(float64(result.Usage.PromptTokens))
	metrics.TokensOutput.WithLabelValues(c.Provider, c.Model).Add(float64(result.Usage.CompletionTokens))

	cost := c.ModelCfg.TokenCost.Estimate(result.Usage.PromptTokens, result.Usage.CompletionTokens)

	entry := ledger.Entry{
		RequestID:        req.RequestID,
		FamilyID:         req.FamilyID,
		Provider:         c.Provider,
		Model:            c.Model,
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
		Cost:             cost,
		Timestamp:        time.Now(),
		Success:          true,
	}
	if r.ledger != nil {
		if err := r.ledger.Append(ctx, entry); err != nil {
			logging.FromContext(ctx).Error("router: ledger append failed", "provider", c.Provider, "model", c.Model, "error", err)
			metrics.LedgerWritesTotal.WithLabelValues("false").Inc()
		} else {
			metrics.LedgerWritesTotal.WithLabelValues("true").Inc()
		}
	}
	if r.debiter != nil && identity != nil {
		totalTokens := int64(result.Usage.TotalTokens)
		go func() { _ = r.debiter.DebitTokens(context.Background(), identity.FamilyID, totalTokens) }()
	}

	return &Outcome{Success: &Success{
		Text: result.Text,
		Tokens: Tokens{
			Prompt:     result.Usage.PromptTokens,
			Completion: result.Usage.CompletionTokens,
			Total:      result.Usage.TotalTokens,
		},
		Meta: Meta{
			Provider:  result.Meta.Provider,
			Model:     result.Meta.Model,
			Features:  result.Meta.Features,
			Region:    result.Meta.Region,
			LatencyMs: result.Meta.LatencyMs,
			Timestamp: result.Meta.Timestamp,
		},
	}}
}

func toGenerateRequest(req Request, model string) providers.GenerateRequest {
	history := make([]providers.HistoryTurn, 0, len(req.ConversationHistory))
	for _, h := range req.ConversationHistory {
		history = append(history, providers.HistoryTurn{Role: h.Role, Content: h.Content})
	}
	return providers.GenerateRequest{
		Model:                 model,
		Prompt:                req.Prompt,
		History:               history,
		MaxTokens:             req.MaxTokens,
		Temperature:           req.Temperature,
		RequiredCapabilities:  req.RequiredCapabilities,
		Tools:                 req.Tools,
		EstimatedInputTokens:  req.EstimatedInputTokens,
		EstimatedOutputTokens: req.EstimatedOutputTokens,
		Region:                req.Region,
	}
}

// retryBackoff applies exponential backoff (2^(attempt-1) * InitialDelayMs,
// with 100ms when InitialDelayMs is unset), capped at the active candidate's
// RetryConfig.MaxDelayMs when that is set.
func retryBackoff(cfg snapshot.RetryConfig, attempt int) time.Duration {
	maxDelay := time.Duration(cfg.MaxDelayMs) * time.Millisecond
	initial := time.Duration(cfg.InitialDelayMs) * time.Millisecond
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	backoff := initial
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if maxDelay > 0 && backoff > maxDelay {
		backoff = maxDelay
	}
	return backoff
}
