package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// permanentErr is non-retryable.
type permanentErr struct{ msg string }

func (e *permanentErr) Error() string   { return e.msg }
func (e *permanentErr) Retryable() bool { return false }

// recordingPolicy captures sleep durations instead of waiting.
func recordingPolicy(maxAttempts int, base time.Duration, waits *[]time.Duration) Policy {
	p := New(maxAttempts, base)
	p.sleep = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return p
}

func TestDoValueSucceedsAfterFailures(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		wantWaits []time.Duration
	}{
		{name: "first try", failures: 0, wantWaits: nil},
		{name: "one failure", failures: 1, wantWaits: []time.Duration{time.Second}},
		{name: "two failures", failures: 2, wantWaits: []time.Duration{time.Second, 2 * time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var waits []time.Duration
			p := recordingPolicy(3, time.Second, &waits)

			calls := 0
			got, err := DoValue(context.Background(), p, func(context.Context) (string, error) {
				calls++
				if calls <= tt.failures {
					return "", fmt.Errorf("attempt %d failed", calls)
				}
				return "ok", nil
			})
			if err != nil {
				t.Fatalf("DoValue() error = %v", err)
			}
			if got != "ok" {
				t.Errorf("DoValue() = %q, want %q", got, "ok")
			}
			if calls != tt.failures+1 {
				t.Errorf("calls = %d, want %d", calls, tt.failures+1)
			}
			if len(waits) != len(tt.wantWaits) {
				t.Fatalf("waits = %v, want %v", waits, tt.wantWaits)
			}
			for i := range waits {
				if waits[i] != tt.wantWaits[i] {
					t.Errorf("wait[%d] = %v, want %v", i, waits[i], tt.wantWaits[i])
				}
			}
		})
	}
}

func TestDoSurfacesLastError(t *testing.T) {
	var waits []time.Duration
	p := recordingPolicy(3, time.Second, &waits)

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return fmt.Errorf("attempt %d failed", calls)
	})
	if err == nil {
		t.Fatal("Do() error = nil, want the final attempt's error")
	}
	if err.Error() != "attempt 3 failed" {
		t.Errorf("Do() error = %q, want the error from attempt 3", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoAbortsOnNonRetryable(t *testing.T) {
	var waits []time.Duration
	p := recordingPolicy(3, time.Second, &waits)

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return fmt.Errorf("wrapped: %w", &permanentErr{msg: "bad config"})
	})
	if err == nil {
		t.Fatal("Do() error = nil")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on non-retryable error)", calls)
	}
	if len(waits) != 0 {
		t.Errorf("waits = %v, want none", waits)
	}
}

func TestDoHonorsContextDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := New(3, time.Second)
	p.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	calls := 0
	err := p.Do(ctx, func(context.Context) error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestNewDefaults(t *testing.T) {
	p := New(0, 0)
	if p.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", p.MaxAttempts, DefaultMaxAttempts)
	}
	if p.BaseDelay != DefaultBaseDelay {
		t.Errorf("BaseDelay = %v, want %v", p.BaseDelay, DefaultBaseDelay)
	}
}

func TestEachCallGetsFreshBudget(t *testing.T) {
	var waits []time.Duration
	p := recordingPolicy(2, time.Millisecond, &waits)

	for i := 0; i < 2; i++ {
		err := p.Do(context.Background(), func(context.Context) error {
			return errors.New("always fails")
		})
		if err == nil {
			t.Fatal("Do() error = nil")
		}
	}
	// Two calls, one backoff wait each: independent budgets.
	if len(waits) != 2 {
		t.Errorf("total waits = %d, want 2", len(waits))
	}
}
