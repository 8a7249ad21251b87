package snapshot

import "testing"

func TestTokenCostUnmarshalFlat(t *testing.T) {
	var c TokenCost
	if err := c.UnmarshalJSON([]byte(`0.002`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Prompt != 0.002 || c.Completion != 0.002 {
		t.Fatalf("expected flat rate applied to both fields, got %+v", c)
	}
}

func TestTokenCostUnmarshalObject(t *testing.T) {
	var c TokenCost
	if err := c.UnmarshalJSON([]byte(`{"prompt":0.001,"completion":0.003}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Prompt != 0.001 || c.Completion != 0.003 {
		t.Fatalf("expected split rates, got %+v", c)
	}
}

func TestTokenCostEstimate(t *testing.T) {
	c := TokenCost{Prompt: 0.001, Completion: 0.002}
	got := c.Estimate(1000, 500)
	want := 0.001*1000 + 0.002*500
	if got != want {
		t.Fatalf("Estimate() = %v, want %v", got, want)
	}
}

func TestDecodeJSONValidDocument(t *testing.T) {
	doc := []byte(`{
		"version": "v1",
		"providers": {
			"openai": {
				"active": true,
				"secretId": "openai/prod",
				"defaultModel": "gpt-4o",
				"rolloutPercentage": 100,
				"rateLimits": {"rpm": 500, "tpm": 100000},
				"retryConfig": {"maxRetries": 2, "initialDelayMs": 100, "maxDelayMs": 2000},
				"models": {
					"gpt-4o": {
						"active": true,
						"rolloutPercentage": 100,
						"tokenCost": {"prompt": 0.005, "completion": 0.015},
						"priority": 1,
						"capabilities": ["chat", "function_calling"],
						"contextSize": 128000,
						"maxOutputTokens": 4096,
						"streamingSupport": true,
						"functionCalling": true
					}
				}
			}
		},
		"routing": {
			"weights": {"cost": 0.3, "quality": 0.4, "latency": 0.2, "availability": 0.1},
			"defaultProvider": "openai",
			"defaultModel": "gpt-4o",
			"rules": []
		},
		"featureFlags": {"enable_bedrock": false}
	}`)

	snap, err := DecodeJSON(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Version != "v1" {
		t.Fatalf("expected version v1, got %q", snap.Version)
	}
	model, ok := snap.GetModel("openai", "gpt-4o")
	if !ok {
		t.Fatal("expected gpt-4o model to be present")
	}
	if !model.HasCapability("function_calling") {
		t.Fatal("expected function_calling capability")
	}
	if model.HasCapability("vision") {
		t.Fatal("did not expect vision capability")
	}
	if model.TokenCost.Prompt != 0.005 {
		t.Fatalf("expected prompt token cost 0.005, got %v", model.TokenCost.Prompt)
	}
}

func TestDecodeJSONRejectsMissingVersion(t *testing.T) {
	doc := []byte(`{"providers": {}, "routing": {}}`)
	if _, err := DecodeJSON(doc); err == nil {
		t.Fatal("expected schema validation error for missing version")
	}
}

func TestDecodeJSONRejectsBadRollout(t *testing.T) {
	doc := []byte(`{
		"version": "v1",
		"providers": {
			"openai": {"active": true, "rolloutPercentage": 150}
		},
		"routing": {}
	}`)
	if _, err := DecodeJSON(doc); err == nil {
		t.Fatal("expected schema validation error for rolloutPercentage > 100")
	}
}

func TestSnapshotGetUnknownProvider(t *testing.T) {
	snap := Snapshot{Providers: map[string]ProviderCfg{}}
	if _, ok := snap.Get("missing"); ok {
		t.Fatal("expected ok=false for unknown provider")
	}
	if _, ok := snap.GetModel("missing", "model"); ok {
		t.Fatal("expected ok=false for unknown provider/model")
	}
}
