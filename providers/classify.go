package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
)

// Code is the error taxonomy every adapter normalizes its upstream errors
// into at the boundary. CAPABILITY/CONTENT are request-
// intrinsic and never retried; the rest may trigger a fallback attempt.
type Code string

const (
	CodeRateLimit  Code = "RATE_LIMIT"
	CodeAuth       Code = "AUTH"
	CodeContent    Code = "CONTENT"
	CodeCapability Code = "CAPABILITY"
	CodeTimeout    Code = "TIMEOUT"
	CodeUnknown    Code = "UNKNOWN"
)

// AdapterError is the normalized error every Adapter.Generate call returns
// on failure. Provider-specific errors (HTTP status, SDK error types,
// context deadlines) are classified into this shape once, at the adapter
// boundary, so the Model Router never inspects a provider-specific error
// type.
type AdapterError struct {
	Code      Code
	Provider  string
	Status    int
	Retryable bool
	Detail    string
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: %s (%s, status=%d, retryable=%v)", e.Provider, e.Detail, e.Code, e.Status, e.Retryable)
}

// HTTPStatusError is returned by adapters that speak raw HTTP (Anthropic)
// so classify can recover the status code without string-parsing an error
// message. Providers with a typed SDK error (OpenAI) are classified
// directly from that type instead.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// classify normalizes a raw provider error into an AdapterError, per
// the router contract table:
//
//	429                        -> RATE_LIMIT, retryable
//	401 / 403                  -> AUTH, not retryable (router falls over anyway)
//	404 model-not-found        -> CAPABILITY, not retryable
//	400 invalid request        -> CAPABILITY, not retryable
//	400 content/moderation     -> CONTENT, not retryable
//	409 / 422                  -> CONTENT, not retryable
//	context deadline exceeded  -> TIMEOUT, retryable
//	anything else              -> UNKNOWN, retryable for >=500, not for <500
func classify(providerName string, err error) *AdapterError {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AdapterError{Code: CodeTimeout, Provider: providerName, Retryable: true, Detail: err.Error()}
	}

	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return classifyStatus(providerName, openaiErr.StatusCode, openaiErr.Error())
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(providerName, statusErr.StatusCode, statusErr.Body)
	}

	var capErr *CapabilityError
	if errors.As(err, &capErr) {
		return &AdapterError{Code: CodeCapability, Provider: providerName, Retryable: false, Detail: capErr.Error()}
	}

	return &AdapterError{Code: CodeUnknown, Provider: providerName, Retryable: true, Detail: err.Error()}
}

func classifyStatus(providerName string, status int, detail string) *AdapterError {
	switch status {
	case http.StatusTooManyRequests:
		return &AdapterError{Code: CodeRateLimit, Provider: providerName, Status: status, Retryable: true, Detail: detail}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AdapterError{Code: CodeAuth, Provider: providerName, Status: status, Retryable: false, Detail: detail}
	case http.StatusNotFound:
		return &AdapterError{Code: CodeCapability, Provider: providerName, Status: status, Retryable: false, Detail: detail}
	case http.StatusBadRequest:
		return classifyBadRequest(providerName, status, detail)
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return &AdapterError{Code: CodeContent, Provider: providerName, Status: status, Retryable: false, Detail: detail}
	default:
		retryable := status >= 500 || status == 0
		return &AdapterError{Code: CodeUnknown, Provider: providerName, Status: status, Retryable: retryable, Detail: detail}
	}
}

// badRequestBody is the subset of OpenAI's and Anthropic's error envelope
// shape that matters here: both nest a type/code under "error", and that
// tag is what actually distinguishes a content-moderation rejection from a
// generic malformed request — the HTTP status alone is 400 for both.
type badRequestBody struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// contentRejectionMarkers are substrings OpenAI/Anthropic use in the
// type/code/message of a 400 response when the rejection is about the
// content itself rather than the request shape.
var contentRejectionMarkers = []string{
	"content_policy",
	"content_filter",
	"moderation",
	"safety_violation",
}

// classifyBadRequest splits HTTP 400 into CAPABILITY (malformed or
// unsupported request) and CONTENT (moderation/content-policy rejection):
// the body's type/code/message is the only signal that tells them apart.
func classifyBadRequest(providerName string, status int, detail string) *AdapterError {
	var body badRequestBody
	_ = json.Unmarshal([]byte(detail), &body)
	tag := strings.ToLower(body.Error.Type + " " + body.Error.Code + " " + body.Error.Message)
	for _, marker := range contentRejectionMarkers {
		if strings.Contains(tag, marker) {
			return &AdapterError{Code: CodeContent, Provider: providerName, Status: status, Retryable: false, Detail: detail}
		}
	}
	return &AdapterError{Code: CodeCapability, Provider: providerName, Status: status, Retryable: false, Detail: detail}
}

// CapabilityError signals that the request asked for something the model
// configuration does not support (e.g. vision content for a non-vision
// model). Raised locally by an adapter, never by an upstream HTTP call.
type CapabilityError struct {
	Detail string
}

func (e *CapabilityError) Error() string { return e.Detail }
