package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ferro-labs/llm-router/authz"
	"github.com/ferro-labs/llm-router/internal/logging"
	"github.com/ferro-labs/llm-router/providers"
	"github.com/ferro-labs/llm-router/router"
)

// chatRequest is the wire shape of POST /v1/chat, matching the request
// envelope verbatim.
type chatRequest struct {
	Prompt                string            `json:"prompt"`
	PreferredProvider     string            `json:"preferredProvider"`
	PreferredModel        string            `json:"preferredModel"`
	MaxTokens             *int              `json:"maxTokens"`
	Temperature           *float64          `json:"temperature"`
	Streaming             bool              `json:"streaming"`
	RequiredCapabilities  []string          `json:"requiredCapabilities"`
	Tools                 []chatTool        `json:"tools"`
	ConversationHistory   []chatHistoryTurn `json:"conversationHistory"`
	EstimatedInputTokens  int               `json:"estimatedInputTokens"`
	EstimatedOutputTokens int               `json:"estimatedOutputTokens"`
	ConfigID              string            `json:"configId"`
}

type chatTool struct {
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters"`
}

type chatHistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the success envelope's "data" sub-object.
type chatResponse struct {
	Text       string         `json:"text"`
	TokenUsage chatTokenUsage `json:"tokenUsage"`
	Meta       chatMeta       `json:"meta"`
}

type chatTokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

type chatMeta struct {
	Provider  string   `json:"provider"`
	Model     string   `json:"model"`
	Features  []string `json:"features"`
	Region    string   `json:"region"`
	Latency   int64    `json:"latency"`
	Timestamp string   `json:"timestamp"`
}

type errorBody struct {
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

type envelope struct {
	Success bool          `json:"success"`
	Data    *chatResponse `json:"data,omitempty"`
	Message string        `json:"message,omitempty"`
	Error   *errorBody    `json:"error,omitempty"`
}

// chatHandler builds the POST /v1/chat endpoint: bearer-token admission via
// authorizer, request translation into router.Request, and the router's
// Outcome translated back into the response envelope with the HTTP status
// mapping from the router contract.
func chatHandler(rt *router.Router, authorizer *authz.Authorizer, region string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logging.FromContext(ctx)

		token := bearerToken(r)
		if token == "" {
			writeEnvelopeError(w, http.StatusUnauthorized, "missing bearer token", "AUTH", nil)
			return
		}

		identity, err := authorizer.Authorize(ctx, token, r.Header.Get("X-Route-Arn"))
		if err != nil {
			status, code := denyStatus(err)
			writeEnvelopeError(w, status, err.Error(), code, nil)
			return
		}

		var body chatRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeEnvelopeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "CAPABILITY", nil)
			return
		}
		if body.Prompt == "" {
			writeEnvelopeError(w, http.StatusBadRequest, "prompt is required", "CAPABILITY", nil)
			return
		}

		maxTokens := 500
		if body.MaxTokens != nil {
			maxTokens = *body.MaxTokens
		}
		temperature := 0.7
		if body.Temperature != nil {
			temperature = *body.Temperature
		}

		caps := make(map[string]struct{}, len(body.RequiredCapabilities))
		for _, c := range body.RequiredCapabilities {
			caps[c] = struct{}{}
		}

		tools := make([]providers.Tool, 0, len(body.Tools))
		for _, t := range body.Tools {
			tools = append(tools, providers.Tool{
				Type: "function",
				Function: providers.Function{
					Name:       t.Name,
					Parameters: t.Parameters,
				},
			})
		}

		history := make([]router.HistoryTurn, 0, len(body.ConversationHistory))
		for _, h := range body.ConversationHistory {
			history = append(history, router.HistoryTurn{Role: h.Role, Content: h.Content})
		}

		req := router.Request{
			RequestID:             logging.TraceIDFromContext(ctx),
			FamilyID:              identity.FamilyID,
			ProfileID:             identity.ProfileID,
			Region:                firstNonEmpty(identity.HomeRegion, region),
			Prompt:                body.Prompt,
			PreferredProvider:     body.PreferredProvider,
			PreferredModel:        body.PreferredModel,
			MaxTokens:             maxTokens,
			Temperature:           temperature,
			RequiredCapabilities:  caps,
			Tools:                 tools,
			ConversationHistory:   history,
			EstimatedInputTokens:  body.EstimatedInputTokens,
			EstimatedOutputTokens: body.EstimatedOutputTokens,
			ConfigID:              body.ConfigID,
		}

		outcome, err := rt.Route(ctx, req, identity)
		if err != nil {
			log.Error("router.Route returned an unexpected error", "error", err)
			writeEnvelopeError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR", nil)
			return
		}

		if outcome.Failure != nil {
			status := httpStatusForFailure(outcome.Failure)
			writeEnvelopeError(w, status, outcome.Failure.Detail, string(outcome.Failure.Code), nil)
			return
		}

		success := outcome.Success
		writeJSON(w, http.StatusOK, envelope{
			Success: true,
			Data: &chatResponse{
				Text: success.Text,
				TokenUsage: chatTokenUsage{
					Prompt:     success.Tokens.Prompt,
					Completion: success.Tokens.Completion,
					Total:      success.Tokens.Total,
				},
				Meta: chatMeta{
					Provider:  success.Meta.Provider,
					Model:     success.Meta.Model,
					Features:  success.Meta.Features,
					Region:    success.Meta.Region,
					Latency:   success.Meta.LatencyMs,
					Timestamp: success.Meta.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
				},
			},
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimPrefix(h, prefix)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// denyStatus maps an authz.DenyError to the HTTP status/error code pair the
// external interface contract specifies for admission failures.
func denyStatus(err error) (int, string) {
	var denyErr *authz.DenyError
	if !asDenyError(err, &denyErr) {
		return http.StatusInternalServerError, "UNKNOWN"
	}
	switch denyErr.Reason {
	case authz.DenyUnauthorized:
		return http.StatusUnauthorized, "AUTH"
	case authz.DenyIncompleteIdentity:
		return http.StatusBadRequest, "CAPABILITY"
	case authz.DenyDatabaseError:
		return http.StatusInternalServerError, "UNKNOWN"
	case authz.DenyProfileNotFound, authz.DenyFamilyNotFound:
		return http.StatusForbidden, "AUTH"
	case authz.DenyProfilePaused, authz.DenyFamilyPaused, authz.DenyInsufficientBalance:
		return http.StatusForbidden, "AUTH"
	default:
		return http.StatusForbidden, "AUTH"
	}
}

func asDenyError(err error, target **authz.DenyError) bool {
	de, ok := err.(*authz.DenyError)
	if !ok {
		return false
	}
	*target = de
	return true
}

// httpStatusForFailure maps the router-facing error taxonomy to the HTTP
// status codes the external interface contract specifies.
func httpStatusForFailure(f *router.Failure) int {
	switch f.Code {
	case router.CodeContent, router.CodeCapability:
		return http.StatusBadRequest
	case router.CodeAuth:
		return http.StatusUnauthorized
	case router.CodeRateLimit:
		return http.StatusTooManyRequests
	case router.CodeTimeout:
		return http.StatusGatewayTimeout
	case router.CodeNoModelAvailable, router.CodeUnknown, router.CodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeEnvelopeError(w http.ResponseWriter, status int, message, code string, details interface{}) {
	writeJSON(w, status, envelope{
		Success: false,
		Message: message,
		Error:   &errorBody{Code: code, Details: details},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
