package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryWithBackoff(t *testing.T) {
	errTransient := errors.New("transient")

	tests := []struct {
		name      string
		failures  int
		attempts  int
		wantCalls int
		wantErr   bool
	}{
		{name: "first try succeeds", failures: 0, attempts: 3, wantCalls: 1},
		{name: "succeeds after retries", failures: 2, attempts: 3, wantCalls: 3},
		{name: "gives up", failures: 5, attempts: 3, wantCalls: 3, wantErr: true},
		{name: "zero attempts still calls once", failures: 0, attempts: 0, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			cfg := RetryConfig{MaxAttempts: tt.attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}

			got, err := retryWithBackoff(context.Background(), cfg, func() (int, error) {
				calls++
				if calls <= tt.failures {
					return 0, errTransient
				}
				return 42, nil
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr {
				if !errors.Is(err, errTransient) {
					t.Errorf("err = %v, want %v", err, errTransient)
				}
				return
			}
			if err != nil || got != 42 {
				t.Errorf("retryWithBackoff() = %d, %v, want 42, nil", got, err)
			}
		})
	}
}

func TestRetryWithBackoff_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := retryWithBackoff(ctx, RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour}, func() (int, error) {
		calls++
		cancel()
		return 0, errors.New("fail")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
