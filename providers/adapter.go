package providers

import (
	"context"
	"sort"
	"time"

	"github.com/ferro-labs/llm-router/snapshot"
)

// Adapter is the uniform contract the Model Router drives for every
// upstream: one call per attempt, normalized errors, and a capability view
// sourced from the Config Snapshot rather than a live discovery call.
type Adapter interface {
	// Name returns the provider name this adapter serves ("openai", etc).
	Name() string
	// Generate performs one upstream call for req, or returns a normalized
	// AdapterError describing why it could not.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, *AdapterError)
	// CanFulfill reports whether this adapter's configured model can serve
	// req's required capabilities and tool usage.
	CanFulfill(req GenerateRequest) bool
	// Capabilities returns the Config Snapshot's view of one model.
	Capabilities(model string) (snapshot.ModelCfg, bool)
	// Limits returns this adapter's static per-provider rate caps.
	Limits() snapshot.RateLimits
}

// HistoryTurn is one entry of a request's prior conversation.
type HistoryTurn struct {
	Role    string
	Content string
}

// GenerateRequest is everything an Adapter needs to assemble and issue one
// upstream call. It deliberately excludes identity/admission fields, which
// never cross the Router→Adapter boundary.
type GenerateRequest struct {
	Model                 string
	Prompt                string
	History                []HistoryTurn
	MaxTokens              int
	Temperature            float64
	RequiredCapabilities   map[string]struct{}
	Tools                  []Tool
	EstimatedInputTokens   int
	EstimatedOutputTokens  int
	Region                 string
}

// GenerateResult is the normalized Success half of the Result type.
type GenerateResult struct {
	Text  string
	Usage Usage
	Meta  GenerateMeta
}

// GenerateMeta carries the response metadata the success envelope
// exposes verbatim.
type GenerateMeta struct {
	Provider  string
	Model     string
	Features  []string
	Region    string
	LatencyMs int64
	Timestamp time.Time
}

// AssembleMessages builds the final message list sent upstream: the
// first system message anywhere in history (if any) becomes the sole
// leading entry, every later system entry is dropped, the remaining turns
// keep their original relative order, and the request's current prompt is
// appended as the final user turn.
func AssembleMessages(history []HistoryTurn, prompt string) []Message {
	var system *HistoryTurn
	rest := make([]HistoryTurn, 0, len(history))
	for i := range history {
		h := history[i]
		if h.Role == RoleSystem {
			if system == nil {
				h := h
				system = &h
			}
			continue
		}
		rest = append(rest, h)
	}

	out := make([]Message, 0, len(rest)+2)
	if system != nil {
		out = append(out, Message{Role: RoleSystem, Content: system.Content})
	}
	for _, h := range rest {
		out = append(out, Message{Role: h.Role, Content: h.Content})
	}
	out = append(out, Message{Role: RoleUser, Content: prompt})
	return out
}

// CanFulfillModel reports whether cfg can serve req's capability and tool
// requirements.
func CanFulfillModel(cfg snapshot.ModelCfg, req GenerateRequest) bool {
	if !cfg.Active {
		return false
	}
	for tag := range req.RequiredCapabilities {
		if !cfg.HasCapability(tag) {
			return false
		}
	}
	if len(req.Tools) > 0 && !cfg.FunctionCalling {
		return false
	}
	return true
}

// estimateTokens approximates the token cost of req for local rate-limit
// admission: request-provided counts win, falling back to prompt length / 4
// and half of maxOutputTokens for output size. This is an admission-only
// estimate — returned upstream usage is authoritative for billing.
func estimateTokens(req GenerateRequest, maxOutputTokens int) int {
	in := req.EstimatedInputTokens
	if in == 0 {
		in = len(req.Prompt) / 4
	}
	out := req.EstimatedOutputTokens
	if out == 0 {
		out = maxOutputTokens / 2
	}
	if out == 0 {
		out = 256
	}
	return in + out
}

// featureList renders a model's capability set as a sorted, de-duplicated
// string slice for the response meta's "features" field.
func featureList(m snapshot.ModelCfg) []string {
	set := make(map[string]struct{}, len(m.Capabilities)+2)
	for tag := range m.Capabilities {
		set[tag] = struct{}{}
	}
	if m.FunctionCalling {
		set["function_calling"] = struct{}{}
	}
	if m.Vision {
		set["vision"] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for tag := range set {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// firstChoiceText extracts the completion text from a legacy Response's
// first choice, for adapters built on top of the Complete-based providers.
func firstChoiceText(resp *Response) string {
	if resp == nil || len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}
