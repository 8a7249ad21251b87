package providers

import (
	"context"
	"os"
	"testing"
	"time"
)

// TestNewOpenAI tests the OpenAI provider constructor.
func TestNewOpenAI(t *testing.T) {
	provider, err := NewOpenAI("sk-test-key", "")
	if err != nil {
		t.Fatalf("NewOpenAI() returned error: %v", err)
	}
	if provider == nil {
		t.Fatal("NewOpenAI() returned nil provider")
	}
}

// TestOpenAIProvider_Complete_Integration tests actual API calls.
// This test only runs if OPENAI_API_KEY environment variable is set.
func TestOpenAIProvider_Complete_Integration(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("Skipping integration test: OPENAI_API_KEY not set")
	}

	provider, err := NewOpenAI(apiKey, "")
	if err != nil {
		t.Fatalf("NewOpenAI() returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	req := Request{
		Model: "gpt-3.5-turbo",
		Messages: []Message{
			{Role: "system", Content: "You are a helpful assistant."},
			{Role: "user", Content: "Say 'test successful' and nothing else."},
		},
		Temperature: floatPtr(0.0),
		MaxTokens:   intPtr(10),
	}

	resp, err := provider.Complete(ctx, req)
	if err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}

	if resp.ID == "" {
		t.Error("Response ID is empty")
	}
	if resp.Model == "" {
		t.Error("Response Model is empty")
	}
	if len(resp.Choices) == 0 {
		t.Error("Response has no choices")
	}
	if resp.Choices[0].Message.Content == "" {
		t.Error("Response message content is empty")
	}

	t.Logf("Response: %+v", resp)
}
