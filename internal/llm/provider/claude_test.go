package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClaude(t *testing.T, handler http.HandlerFunc) *claude {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return newClaude(Config{
		Name:    "claude",
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "claude-test",
		Timeout: 5 * time.Second,
	})
}

func TestClaudeSend(t *testing.T) {
	p := newTestClaude(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("Path = %q, want /messages", r.URL.Path)
		}
		if key := r.Header.Get("x-api-key"); key != "test-key" {
			t.Errorf("x-api-key = %q, want %q", key, "test-key")
		}
		if v := r.Header.Get("anthropic-version"); v != claudeVersion {
			t.Errorf("anthropic-version = %q, want %q", v, claudeVersion)
		}

		var req claudeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.System != "be friendly" {
			t.Errorf("System = %q, want the system prompt lifted out of messages", req.System)
		}
		if req.MaxTokens != claudeDefaultMaxTokens {
			t.Errorf("MaxTokens = %d, want default %d", req.MaxTokens, claudeDefaultMaxTokens)
		}
		for _, m := range req.Messages {
			if m.Role == "system" {
				t.Error("system role must not appear in the messages list")
			}
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":   "msg-1",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": "Hi! "},
			},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 10, "output_tokens": 3},
		})
	})

	resp, err := p.Send(context.Background(), ChatRequest{
		System:   "be friendly",
		Messages: []ChatMessage{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.Content != "Hi!" {
		t.Errorf("Content = %q, want trimmed %q", resp.Content, "Hi!")
	}
	if resp.Usage.TotalTokens != 13 {
		t.Errorf("TotalTokens = %d, want 13", resp.Usage.TotalTokens)
	}
}

func TestClaudeSendError(t *testing.T) {
	p := newTestClaude(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`))
	})

	_, err := p.Send(context.Background(), ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "hi"}}})
	var provErr *Error
	if !errors.As(err, &provErr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if provErr.Code != CodeRateLimit {
		t.Errorf("Code = %q, want %q", provErr.Code, CodeRateLimit)
	}
	if provErr.Message != "slow down" {
		t.Errorf("Message = %q, want the vendor message", provErr.Message)
	}
	if !provErr.Retryable() {
		t.Error("rate limit should be retryable")
	}
}

func TestClaudeSendNoTextContent(t *testing.T) {
	p := newTestClaude(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"msg-1","content":[]}`))
	})

	_, err := p.Send(context.Background(), ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "hi"}}})
	var provErr *Error
	if !errors.As(err, &provErr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if provErr.Code != CodeBadResponse {
		t.Errorf("Code = %q, want %q", provErr.Code, CodeBadResponse)
	}
}

func TestClaudeSendMaxTokensOverride(t *testing.T) {
	p := newTestClaude(t, func(w http.ResponseWriter, r *http.Request) {
		var req claudeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.MaxTokens != 128 {
			t.Errorf("MaxTokens = %d, want 128", req.MaxTokens)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "ok"}},
		})
	})

	_, err := p.Send(context.Background(), ChatRequest{
		Messages:  []ChatMessage{{Role: "user", Content: "hi"}},
		MaxTokens: 128,
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
}
