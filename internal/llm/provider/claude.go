package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	claudeBaseURL      = "https://api.anthropic.com/v1"
	claudeVersion      = "2023-06-01"
	claudeDefaultModel = "claude-3-5-haiku-latest"

	// The messages API requires max_tokens; used when the request
	// leaves it unset.
	claudeDefaultMaxTokens = 4096
)

// claude talks the messages wire format with x-api-key auth and a
// version header. The system prompt is a top-level field, not a message.
type claude struct {
	apiKey  string
	baseURL string
	model   string
	timeout time.Duration
	client  *http.Client
}

func newClaude(cfg Config) *claude {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = claudeBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = claudeDefaultModel
	}
	return &claude{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		timeout: cfg.Timeout,
		client:  &http.Client{},
	}
}

func (p *claude) Name() string { return "claude" }

type claudeRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type claudeContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type claudeResponse struct {
	ID         string               `json:"id"`
	Role       string               `json:"role"`
	Content    []claudeContentBlock `json:"content"`
	StopReason string               `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Send performs one messages-API attempt.
func (p *claude) Send(ctx context.Context, req ChatRequest) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = claudeDefaultMaxTokens
	}

	body, err := json.Marshal(claudeRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      req.System,
		Messages:    req.Messages,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, &Error{Provider: "claude", Code: CodeInvalidRequest, Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Provider: "claude", Code: CodeInvalidRequest, Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", claudeVersion)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, transportError("claude", err)
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	if httpResp.StatusCode != http.StatusOK {
		return nil, p.errorFromResponse(httpResp)
	}

	var resp claudeResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, &Error{Provider: "claude", Code: CodeBadResponse, Message: err.Error()}
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	if content.Len() == 0 {
		return nil, &Error{Provider: "claude", Code: CodeBadResponse, Message: "response contains no text content"}
	}

	return &Response{
		Content: strings.TrimSpace(content.String()),
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

func (p *claude) errorFromResponse(httpResp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1<<16))

	message := strings.TrimSpace(string(body))
	var errResp claudeResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
		message = errResp.Error.Message
	}

	return &Error{
		Provider:   "claude",
		Code:       codeForStatus(httpResp.StatusCode),
		Message:    message,
		StatusCode: httpResp.StatusCode,
	}
}
