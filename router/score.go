package router

import (
	"context"
	"hash/fnv"
	"sort"

	"github.com/ferro-labs/llm-router/breaker"
	"github.com/ferro-labs/llm-router/health"
	"github.com/ferro-labs/llm-router/providers"
	"github.com/ferro-labs/llm-router/snapshot"
)

// candidate is one eligible (provider, model) pair moving through scoring
// and the attempt loop.
type candidate struct {
	Provider        string
	Model           string
	ProviderCfg     snapshot.ProviderCfg
	ModelCfg        snapshot.ModelCfg
	Adapter         providers.Adapter
	EstimatedInput  int
	EstimatedOutput int
	Score           float64
}

// rolloutHash computes the stable FNV-1a hash of familyID+requestID used to
// gate partial rollouts. FNV is chosen over a third-party hash because it
// is the repo's only cross-cutting hash need (see DESIGN.md).
func rolloutHash(familyID, requestID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(familyID))
	_, _ = h.Write([]byte(requestID))
	return h.Sum32()
}

// passesRollout reports whether hash falls below pct when taken mod 100.
// A pct of 0 admits nothing; 100 admits everything.
func passesRollout(hash uint32, pct int) bool {
	if pct <= 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	return int(hash%100) < pct
}

// estimateTokens applies the router contract estimate fallback: request-provided
// counts win, otherwise len(prompt)/4 for input and maxOutputTokens/2 for
// output.
func estimateTokens(prompt string, maxOutputTokens, reqIn, reqOut int) (int, int) {
	in := reqIn
	if in <= 0 {
		in = len(prompt) / 4
	}
	out := reqOut
	if out <= 0 {
		out = maxOutputTokens / 2
	}
	if out <= 0 {
		out = 256
	}
	return in, out
}

// score computes each candidate's weighted score
// stores it on the candidate in place. region is the health key's region
// component; breakers may be nil in tests that don't exercise availability.
func score(ctx context.Context, candidates []*candidate, weights snapshot.ScoreWeights, breakers *breaker.Manager, region string) {
	for _, c := range candidates {
		cCost := scoreCost(c)
		cQuality := scoreQuality(c)
		cLatency, cAvailability := scoreHealth(ctx, breakers, c.Provider, region)

		c.Score = weights.Cost*cCost + weights.Quality*cQuality + weights.Latency*cLatency + weights.Availability*cAvailability
	}
}

// scoreCost normalizes expected cost to (0,1], higher is better: cheaper
// candidates score closer to 1.
func scoreCost(c *candidate) float64 {
	expected := c.ModelCfg.TokenCost.Estimate(c.EstimatedInput, c.EstimatedOutput)
	if expected < 0 {
		expected = 0
	}
	return 1.0 / (1.0 + expected)
}

// priorityCeiling bounds model priority for quality normalization: priority
// is config-authored, not request data, so a fixed ceiling keeps scores
// stable across requests and candidate sets.
const priorityCeiling = 10

// scoreQuality derives c_quality from model priority: higher priority is
// closer to 1.
func scoreQuality(c *candidate) float64 {
	p := c.ModelCfg.Priority
	if p < 0 {
		p = 0
	}
	if p > priorityCeiling {
		p = priorityCeiling
	}
	return float64(p) / float64(priorityCeiling)
}

// scoreHealth returns (c_latency, c_availability) from the provider's
// current health record for (provider, region).
// A missing record (never contacted) scores 0.5 latency and 1.0
// availability, as CLOSED; a nil Manager scores 0.5 for both.
func scoreHealth(ctx context.Context, breakers *breaker.Manager, provider, region string) (float64, float64) {
	if breakers == nil {
		return 0.5, 0.5
	}
	rec, ok, err := breakers.Snapshot(ctx, provider, region)
	if err != nil || !ok {
		return 0.5, 1.0
	}

	cLatency := 0.5
	if avg, known := rec.AvgLatencyMs(); known {
		cLatency = 1.0 / (1.0 + avg/1000.0)
	}

	var cAvailability float64
	switch rec.Status {
	case health.StatusClosed:
		cAvailability = 1.0
	case health.StatusHalfOpen:
		cAvailability = 0.5
	case health.StatusOpen:
		cAvailability = 0.0
	}
	return cLatency, cAvailability
}

// sortCandidates orders by descending score; ties break by model priority
// descending then provider name ascending
// note.
func sortCandidates(candidates []*candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.ModelCfg.Priority != b.ModelCfg.Priority {
			return a.ModelCfg.Priority > b.ModelCfg.Priority
		}
		return a.Provider < b.Provider
	})
}
