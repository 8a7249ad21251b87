package router

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ferro-labs/llm-router/breaker"
	"github.com/ferro-labs/llm-router/health"
	"github.com/ferro-labs/llm-router/providers"
	"github.com/ferro-labs/llm-router/snapshot"
)

type fakeSnapshotStore struct {
	snap snapshot.Snapshot
}

func (s fakeSnapshotStore) Load(string) (snapshot.Snapshot, error) { return s.snap, nil }

type fakeAdapter struct {
	name      string
	models    map[string]snapshot.ModelCfg
	calls     int32
	genResult *providers.GenerateResult
	genErr    *providers.AdapterError
}

func (a *fakeAdapter) Name() string { return a.name }
func (a *fakeAdapter) Capabilities(model string) (snapshot.ModelCfg, bool) {
	m, ok := a.models[model]
	return m, ok
}
func (a *fakeAdapter) Limits() snapshot.RateLimits { return snapshot.RateLimits{RPM: 1000, TPM: 1000000} }
func (a *fakeAdapter) CanFulfill(req providers.GenerateRequest) bool {
	m, ok := a.models[req.Model]
	return ok && m.Active
}
func (a *fakeAdapter) Generate(ctx context.Context, req providers.GenerateRequest) (*providers.GenerateResult, *providers.AdapterError) {
	atomic.AddInt32(&a.calls, 1)
	if a.genErr != nil {
		return nil, a.genErr
	}
	return a.genResult, nil
}

func twoProviderSnapshot() snapshot.Snapshot {
	return snapshot.Snapshot{
		Version: "v1",
		Providers: map[string]snapshot.ProviderCfg{
			"openai": {
				Active:      true,
				RetryConfig: snapshot.RetryConfig{MaxRetries: 2, InitialDelayMs: 1, MaxDelayMs: 2},
				Models: map[string]snapshot.ModelCfg{
					"gpt-4o": {Active: true, RolloutPercentage: 100, Priority: 5, TokenCost: snapshot.TokenCost{Prompt: 0.002, Completion: 0.003}, MaxOutputTokens: 100},
				},
			},
			"anthropic": {
				Active:      true,
				RetryConfig: snapshot.RetryConfig{MaxRetries: 2, InitialDelayMs: 1, MaxDelayMs: 2},
				Models: map[string]snapshot.ModelCfg{
					"claude-3-haiku-20240307": {Active: true, RolloutPercentage: 100, Priority: 5, TokenCost: snapshot.TokenCost{Prompt: 0.00025, Completion: 0.00125}, MaxOutputTokens: 100},
				},
			},
		},
		Routing: snapshot.RoutingCfg{
			Weights: snapshot.ScoreWeights{Cost: 0.8, Quality: 0.1, Latency: 0.05, Availability: 0.05},
		},
	}
}

func successResult(provider, model string) *providers.GenerateResult {
	return &providers.GenerateResult{
		Text:  "hi",
		Usage: providers.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
		Meta:  providers.GenerateMeta{Provider: provider, Model: model, Timestamp: time.Now()},
	}
}

func TestRoute_HappyPath_CheaperProviderWins(t *testing.T) {
	openai := &fakeAdapter{name: "openai", models: twoProviderSnapshot().Providers["openai"].Models, genResult: successResult("openai", "gpt-4o")}
	anthropic := &fakeAdapter{name: "anthropic", models: twoProviderSnapshot().Providers["anthropic"].Models, genResult: successResult("anthropic", "claude-3-haiku-20240307")}

	store := health.NewMemoryStore()
	mgr := breaker.NewManager(store)
	r := New(fakeSnapshotStore{snap: twoProviderSnapshot()}, map[string]providers.Adapter{"openai": openai, "anthropic": anthropic}, mgr, nil, nil, "default")

	outcome, err := r.Route(context.Background(), Request{RequestID: "req1", FamilyID: "fam1", Prompt: "Hello", Region: "us-east-1"}, nil)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if outcome.Success == nil {
		t.Fatalf("expected success, got failure: %+v", outcome.Failure)
	}
	if outcome.Success.Meta.Provider != "anthropic" {
		t.Errorf("Meta.Provider = %q, want anthropic (cheaper)", outcome.Success.Meta.Provider)
	}
	if atomic.LoadInt32(&openai.calls) != 0 {
		t.Error("expected no call to openai when anthropic is cheaper and ranks first")
	}
}

func TestRoute_PreferredProviderWinsOverCost(t *testing.T) {
	openai := &fakeAdapter{name: "openai", models: twoProviderSnapshot().Providers["openai"].Models, genResult: successResult("openai", "gpt-4o")}
	anthropic := &fakeAdapter{name: "anthropic", models: twoProviderSnapshot().Providers["anthropic"].Models, genResult: successResult("anthropic", "claude-3-haiku-20240307")}

	store := health.NewMemoryStore()
	mgr := breaker.NewManager(store)
	r := New(fakeSnapshotStore{snap: twoProviderSnapshot()}, map[string]providers.Adapter{"openai": openai, "anthropic": anthropic}, mgr, nil, nil, "default")

	outcome, err := r.Route(context.Background(), Request{RequestID: "req2", FamilyID: "fam1", Prompt: "Hello", Region: "us-east-1", PreferredProvider: "openai"}, nil)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if outcome.Success == nil || outcome.Success.Meta.Provider != "openai" {
		t.Fatalf("expected success from openai, got %+v / %+v", outcome.Success, outcome.Failure)
	}
	if atomic.LoadInt32(&anthropic.calls) != 0 {
		t.Error("expected no call to anthropic when preferredProvider is openai")
	}
}

func TestRoute_FallsOverWhenPreferredIsOpen(t *testing.T) {
	openai := &fakeAdapter{name: "openai", models: twoProviderSnapshot().Providers["openai"].Models, genResult: successResult("openai", "gpt-4o")}
	anthropic := &fakeAdapter{name: "anthropic", models: twoProviderSnapshot().Providers["anthropic"].Models, genResult: successResult("anthropic", "claude-3-haiku-20240307")}

	store := health.NewMemoryStore()
	now := time.Now()
	_ = store.Put(context.Background(), health.Record{
		Provider: "anthropic", Region: "us-east-1", Status: health.StatusOpen,
		OpenedTimestamp: &now, LastStateChangeTimestamp: now, TTL: now.Add(time.Hour),
	})
	mgr := breaker.NewManager(store)
	r := New(fakeSnapshotStore{snap: twoProviderSnapshot()}, map[string]providers.Adapter{"openai": openai, "anthropic": anthropic}, mgr, nil, nil, "default")

	outcome, err := r.Route(context.Background(), Request{RequestID: "req3", FamilyID: "fam1", Prompt: "Hello", Region: "us-east-1"}, nil)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if outcome.Success == nil || outcome.Success.Meta.Provider != "openai" {
		t.Fatalf("expected fallback success from openai, got %+v / %+v", outcome.Success, outcome.Failure)
	}
	if atomic.LoadInt32(&anthropic.calls) != 0 {
		t.Error("expected zero upstream calls to the OPEN provider")
	}
}

func TestRoute_AllOpenYieldsNoModelAvailable(t *testing.T) {
	openai := &fakeAdapter{name: "openai", models: twoProviderSnapshot().Providers["openai"].Models, genResult: successResult("openai", "gpt-4o")}
	anthropic := &fakeAdapter{name: "anthropic", models: twoProviderSnapshot().Providers["anthropic"].Models, genResult: successResult("anthropic", "claude-3-haiku-20240307")}

	store := health.NewMemoryStore()
	now := time.Now()
	for _, p := range []string{"openai", "anthropic"} {
		_ = store.Put(context.Background(), health.Record{
			Provider: p, Region: "us-east-1", Status: health.StatusOpen,
			OpenedTimestamp: &now, LastStateChangeTimestamp: now, TTL: now.Add(time.Hour),
		})
	}
	mgr := breaker.NewManager(store)
	r := New(fakeSnapshotStore{snap: twoProviderSnapshot()}, map[string]providers.Adapter{"openai": openai, "anthropic": anthropic}, mgr, nil, nil, "default")

	outcome, err := r.Route(context.Background(), Request{RequestID: "req4", FamilyID: "fam1", Prompt: "Hello", Region: "us-east-1"}, nil)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if outcome.Failure == nil || outcome.Failure.Code != CodeNoModelAvailable {
		t.Fatalf("expected NO_MODEL_AVAILABLE, got %+v", outcome)
	}
	if atomic.LoadInt32(&openai.calls) != 0 || atomic.LoadInt32(&anthropic.calls) != 0 {
		t.Error("expected zero upstream calls when every candidate is OPEN")
	}
}

func TestRoute_RolloutZeroExcludesModel(t *testing.T) {
	snap := twoProviderSnapshot()
	m := snap.Providers["openai"].Models["gpt-4o"]
	m.RolloutPercentage = 0
	snap.Providers["openai"].Models["gpt-4o"] = m

	openai := &fakeAdapter{name: "openai", models: snap.Providers["openai"].Models, genResult: successResult("openai", "gpt-4o")}
	anthropic := &fakeAdapter{name: "anthropic", models: snap.Providers["anthropic"].Models, genResult: successResult("anthropic", "claude-3-haiku-20240307")}

	mgr := breaker.NewManager(health.NewMemoryStore())
	r := New(fakeSnapshotStore{snap: snap}, map[string]providers.Adapter{"openai": openai, "anthropic": anthropic}, mgr, nil, nil, "default")

	outcome, err := r.Route(context.Background(), Request{RequestID: "req5", FamilyID: "fam1", Prompt: "Hello", Region: "us-east-1", PreferredProvider: "openai"}, nil)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if outcome.Failure == nil || outcome.Failure.Code != CodeNoModelAvailable {
		t.Fatalf("expected NO_MODEL_AVAILABLE for a 0%% rollout model pinned by preferredProvider, got %+v", outcome)
	}
}

func TestRoute_ContentErrorSurfacesImmediatelyWithoutFallback(t *testing.T) {
	openai := &fakeAdapter{name: "openai", models: twoProviderSnapshot().Providers["openai"].Models, genErr: &providers.AdapterError{Code: providers.CodeContent, Retryable: false}}
	anthropic := &fakeAdapter{name: "anthropic", models: twoProviderSnapshot().Providers["anthropic"].Models, genResult: successResult("anthropic", "claude-3-haiku-20240307")}

	mgr := breaker.NewManager(health.NewMemoryStore())
	r := New(fakeSnapshotStore{snap: twoProviderSnapshot()}, map[string]providers.Adapter{"openai": openai, "anthropic": anthropic}, mgr, nil, nil, "default")

	outcome, err := r.Route(context.Background(), Request{RequestID: "req6", FamilyID: "fam1", Prompt: "Hello", Region: "us-east-1", PreferredProvider: "openai"}, nil)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if outcome.Failure == nil || outcome.Failure.Code != CodeContent {
		t.Fatalf("expected CONTENT failure, got %+v", outcome)
	}
	if atomic.LoadInt32(&anthropic.calls) != 0 {
		t.Error("expected CONTENT errors to never fall over to a sibling candidate")
	}
}

func TestRolloutHash_Stable(t *testing.T) {
	a := rolloutHash("fam1", "req1")
	b := rolloutHash("fam1", "req1")
	if a != b {
		t.Error("expected rolloutHash to be deterministic for identical inputs")
	}
}

func TestPassesRollout_Boundaries(t *testing.T) {
	if passesRollout(50, 0) {
		t.Error("0%% rollout must never pass")
	}
	if !passesRollout(50, 100) {
		t.Error("100%% rollout must always pass")
	}
}
