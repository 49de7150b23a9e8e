package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shutinglu0913/arbot-puppet/internal/retry"
)

func TestNewSelectsVariant(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  bool
	}{
		{name: "openai", cfg: Config{Name: "openai", APIKey: "k"}, wantName: "openai"},
		{name: "claude", cfg: Config{Name: "claude", APIKey: "k"}, wantName: "claude"},
		{name: "unknown provider", cfg: Config{Name: "gemini", APIKey: "k"}, wantErr: true},
		{name: "missing key", cfg: Config{Name: "openai"}, wantErr: true},
		{name: "blank key", cfg: Config{Name: "claude", APIKey: "   "}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("New() error = nil")
				}
				var cfgErr *ConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("error type = %T, want *ConfigurationError", err)
				}
				if cfgErr.Retryable() {
					t.Error("ConfigurationError.Retryable() = true, want false")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
		})
	}
}

func TestNewAppliesDefaultTimeout(t *testing.T) {
	p, err := New(Config{Name: "openai", APIKey: "k"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := p.(*openAI).timeout; got != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", got, DefaultTimeout)
	}
}

func TestCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{400, CodeInvalidRequest},
		{401, CodeAuthentication},
		{403, CodeAuthentication},
		{429, CodeRateLimit},
		{500, CodeServerError},
		{503, CodeServerError},
		{404, CodeUnknown},
	}
	for _, tt := range tests {
		if got := codeForStatus(tt.status); got != tt.want {
			t.Errorf("codeForStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

// stubProvider counts calls for decorator tests.
type stubProvider struct {
	calls int
	resp  *Response
	err   error
}

func (s *stubProvider) Name() string { return "stub" }
func (s *stubProvider) Send(context.Context, ChatRequest) (*Response, error) {
	s.calls++
	return s.resp, s.err
}

func TestLimitPassesThrough(t *testing.T) {
	stub := &stubProvider{resp: &Response{Content: "ok"}}

	// Non-positive rps disables the limiter entirely.
	if p := Limit(stub, 0, 1); p != Provider(stub) {
		t.Error("Limit(rps=0) should return the provider unwrapped")
	}

	p := Limit(stub, 100, 1)
	if p.Name() != "stub" {
		t.Errorf("Name() = %q, want stub", p.Name())
	}
	resp, err := p.Send(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.Content != "ok" || stub.calls != 1 {
		t.Errorf("limited provider did not delegate (calls=%d)", stub.calls)
	}
}

func TestLimitBlocksUntilContextCancelled(t *testing.T) {
	stub := &stubProvider{resp: &Response{Content: "ok"}}
	p := Limit(stub, 0.001, 1)

	// Burn the single burst token.
	if _, err := p.Send(context.Background(), ChatRequest{}); err != nil {
		t.Fatalf("first Send() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.Send(ctx, ChatRequest{}); err == nil {
		t.Fatal("second Send() error = nil, want context deadline from limiter")
	}
	if stub.calls != 1 {
		t.Errorf("calls = %d, want 1", stub.calls)
	}
}

func TestTransportFailureIsRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close() // the port now refuses connections

	p := newOpenAI(Config{APIKey: "k", BaseURL: base, Timeout: time.Second})

	_, err := p.Send(context.Background(), ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "hi"}}})
	var provErr *Error
	if !errors.As(err, &provErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if provErr.Code != CodeTransport {
		t.Errorf("Code = %q, want %q", provErr.Code, CodeTransport)
	}
	if !provErr.Retryable() {
		t.Error("Retryable() = false, want true for a refused connection")
	}

	// Under the retry policy a refused connection consumes the full
	// attempt budget instead of aborting after the first attempt.
	attempts := 0
	policy := retry.New(3, time.Millisecond)
	_, err = retry.DoValue(context.Background(), policy, func(ctx context.Context) (*Response, error) {
		attempts++
		return p.Send(ctx, ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "hi"}}})
	})
	if err == nil {
		t.Fatal("DoValue() error = nil")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestInstrumentDelegates(t *testing.T) {
	stub := &stubProvider{resp: &Response{Content: "ok", Usage: Usage{TotalTokens: 5}}}
	p := Instrument(stub)

	if p.Name() != "stub" {
		t.Errorf("Name() = %q, want stub", p.Name())
	}
	resp, err := p.Send(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q, want ok", resp.Content)
	}

	stub.err = &Error{Provider: "stub", Code: CodeServerError, Message: "boom"}
	stub.resp = nil
	if _, err := p.Send(context.Background(), ChatRequest{}); err == nil {
		t.Fatal("Send() error = nil, want the provider error passed through")
	}
}
