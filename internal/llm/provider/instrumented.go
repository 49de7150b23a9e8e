package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/shutinglu0913/arbot-puppet/internal/observability"
)

// instrumented wraps a Provider with tracing and Prometheus metrics.
// Every attempt gets a span carrying model, message count, duration,
// and token usage.
type instrumented struct {
	inner Provider
}

// Instrument wraps a provider with automatic observability.
func Instrument(p Provider) Provider {
	return &instrumented{inner: p}
}

func (p *instrumented) Name() string { return p.inner.Name() }

func (p *instrumented) Send(ctx context.Context, req ChatRequest) (*Response, error) {
	ctx, span := observability.StartSpan(ctx, fmt.Sprintf("llm.%s.send", p.inner.Name()),
		attribute.String("llm.provider", p.inner.Name()),
		attribute.String("llm.model", req.Model),
		attribute.Float64("llm.temperature", req.Temperature),
		attribute.Int("llm.max_tokens", req.MaxTokens),
		attribute.Int("llm.messages_count", len(req.Messages)),
	)
	defer span.End()

	start := time.Now()
	resp, err := p.inner.Send(ctx, req)
	duration := time.Since(start)

	span.SetAttributes(
		attribute.Int64("llm.duration_ms", duration.Milliseconds()),
		attribute.Bool("llm.success", err == nil),
	)

	if err != nil {
		span.RecordError(err)
		observability.RecordProviderRequest(p.inner.Name(), statusLabel(err), duration.Seconds())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("llm.usage.prompt_tokens", resp.Usage.PromptTokens),
		attribute.Int("llm.usage.completion_tokens", resp.Usage.CompletionTokens),
		attribute.Int("llm.usage.total_tokens", resp.Usage.TotalTokens),
	)
	observability.RecordProviderRequest(p.inner.Name(), "ok", duration.Seconds())
	return resp, nil
}

func statusLabel(err error) string {
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr.Code
	}
	return CodeUnknown
}
