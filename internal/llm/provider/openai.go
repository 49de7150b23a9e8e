package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	openaiBaseURL      = "https://api.openai.com/v1"
	openaiDefaultModel = "gpt-4o-mini"
)

// openAI talks the chat-completions wire format with bearer-token auth.
type openAI struct {
	apiKey  string
	baseURL string
	model   string
	timeout time.Duration
	client  *http.Client
}

func newOpenAI(cfg Config) *openAI {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openaiBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openaiDefaultModel
	}
	return &openAI{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		timeout: cfg.Timeout,
		client:  &http.Client{},
	}
}

func (p *openAI) Name() string { return "openai" }

type openaiRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type openaiResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// Send performs one chat-completions attempt.
func (p *openAI) Send(ctx context.Context, req ChatRequest) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	// The system prompt rides in the message list as role "system".
	messages := make([]ChatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, req.Messages...)

	body, err := json.Marshal(openaiRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, &Error{Provider: "openai", Code: CodeInvalidRequest, Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Provider: "openai", Code: CodeInvalidRequest, Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, transportError("openai", err)
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	if httpResp.StatusCode != http.StatusOK {
		return nil, p.errorFromResponse(httpResp)
	}

	var resp openaiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, &Error{Provider: "openai", Code: CodeBadResponse, Message: err.Error()}
	}
	if len(resp.Choices) == 0 {
		return nil, &Error{Provider: "openai", Code: CodeBadResponse, Message: "response contains no choices"}
	}

	return &Response{
		Content: strings.TrimSpace(resp.Choices[0].Message.Content),
		Usage:   resp.Usage,
	}, nil
}

func (p *openAI) errorFromResponse(httpResp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1<<16))

	message := strings.TrimSpace(string(body))
	var errResp openaiResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
		message = errResp.Error.Message
	}

	return &Error{
		Provider:   "openai",
		Code:       codeForStatus(httpResp.StatusCode),
		Message:    message,
		StatusCode: httpResp.StatusCode,
	}
}

// transportError classifies a failed round trip. Connection refusals,
// resets and DNS failures are as transient as timeouts, so every
// transport failure is retryable.
func transportError(providerName string, err error) *Error {
	code := CodeTransport
	if errors.Is(err, context.DeadlineExceeded) {
		code = CodeTimeout
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		code = CodeTimeout
	}
	return &Error{Provider: providerName, Code: code, Message: err.Error()}
}
