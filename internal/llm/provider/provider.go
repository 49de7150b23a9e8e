// Package provider normalizes calls to LLM vendors behind one interface.
// Exactly two wire formats are supported: the OpenAI chat-completions
// shape and the Claude messages shape. The variant is chosen once at
// construction, never per call.
//
// Providers make a single attempt per Send; retry belongs to the caller
// (see internal/retry).
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultTimeout is the per-attempt request timeout when none is configured.
const DefaultTimeout = 30 * time.Second

// Provider sends a provider-agnostic chat request to one LLM vendor.
type Provider interface {
	// Send performs one request attempt and returns the assistant reply.
	// A hung attempt is cancelled after the configured timeout and
	// reported as a retryable *Error.
	Send(ctx context.Context, req ChatRequest) (*Response, error)

	// Name returns the provider name ("openai" or "claude").
	Name() string
}

// ChatMessage is one role/content pair of the outbound context.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ChatRequest is the provider-agnostic request shape.
type ChatRequest struct {
	// System is the system prompt, transported per vendor convention.
	System string

	// Messages is the bounded context window, oldest first.
	Messages []ChatMessage

	// Model overrides the provider's configured model when non-empty.
	Model string

	// Temperature is the sampling temperature.
	Temperature float64

	// MaxTokens limits the reply length. Zero means the vendor default.
	MaxTokens int
}

// Usage is the vendor's token accounting, zero when not supplied.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a successful assistant reply.
type Response struct {
	// Content is the assistant text, whitespace-trimmed.
	Content string

	// Usage is token accounting if the vendor supplied it.
	Usage Usage
}

// Config selects and configures a provider variant.
type Config struct {
	// Name is "openai" or "claude".
	Name string

	// APIKey authenticates with the vendor. Required.
	APIKey string

	// BaseURL overrides the vendor endpoint (tests, proxies).
	BaseURL string

	// Model is the default model for requests.
	Model string

	// Timeout bounds each request attempt. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// ConfigurationError reports an unusable provider configuration. It is
// raised before any network I/O and is never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "provider configuration: " + e.Reason
}

// Retryable reports false: a bad configuration cannot fix itself.
func (e *ConfigurationError) Retryable() bool { return false }

// Error codes carried by *Error.
const (
	CodeInvalidRequest = "invalid_request"
	CodeAuthentication = "authentication_error"
	CodeRateLimit      = "rate_limit_exceeded"
	CodeServerError    = "server_error"
	CodeTimeout        = "timeout"
	CodeTransport      = "transport_error"
	CodeBadResponse    = "bad_response"
	CodeUnknown        = "unknown_error"
)

// Error is a failed provider attempt: a non-2xx HTTP response, a
// malformed response body, or a per-attempt timeout.
type Error struct {
	Provider   string
	Code       string
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Provider, e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
}

// Retryable reports whether another attempt can reasonably succeed.
func (e *Error) Retryable() bool {
	switch e.Code {
	case CodeRateLimit, CodeServerError, CodeTimeout, CodeTransport:
		return true
	default:
		return false
	}
}

// codeForStatus maps an HTTP status to an error code.
func codeForStatus(status int) string {
	switch {
	case status == 400:
		return CodeInvalidRequest
	case status == 401 || status == 403:
		return CodeAuthentication
	case status == 429:
		return CodeRateLimit
	case status >= 500:
		return CodeServerError
	default:
		return CodeUnknown
	}
}

// New creates the provider variant named in cfg. An unknown name or a
// missing API key fails fast with a *ConfigurationError.
func New(cfg Config) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &ConfigurationError{Reason: "missing API key"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	switch cfg.Name {
	case "openai":
		return newOpenAI(cfg), nil
	case "claude":
		return newClaude(cfg), nil
	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown provider %q", cfg.Name)}
	}
}
