package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "twdataset/pkg/errors"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{6, 1 * time.Second},
	}

	for _, test := range tests {
		if delay := backoff.NextDelay(test.attempt); delay != test.expected {
			t.Errorf("attempt %d: expected %v, got %v", test.attempt, test.expected, delay)
		}
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 50; i++ {
		delay := backoff.NextDelay(2)
		if delay < 140*time.Millisecond || delay > 260*time.Millisecond {
			t.Fatalf("delay %v outside 200ms ± 30%%", delay)
		}
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", errs.New(errs.ErrorTypeNetwork, 0, "reset"), true},
		{"server", errs.New(errs.ErrorTypeServerError, 503, "unavailable"), true},
		{"rate limit", errs.New(errs.ErrorTypeRateLimit, 429, "too many"), false},
		{"auth", errs.New(errs.ErrorTypeAuth, 401, "bad token"), false},
		{"cancelled", errs.Wrap(errs.ErrorTypeNetwork, context.Canceled, "request"), false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		if got := DefaultRetryIf(tt.err); got != tt.want {
			t.Errorf("%s: DefaultRetryIf = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	attempts := 0
	var delays []time.Duration

	err := Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errs.New(errs.ErrorTypeServerError, 502, "bad gateway")
		}
		return nil
	}, &Config{
		MaxAttempts: 5,
		Backoff:     fixedDelay(time.Millisecond),
		OnRetry: func(attempt int, err error, delay time.Duration) {
			delays = append(delays, delay)
		},
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if len(delays) != 2 {
		t.Errorf("expected 2 retries, got %d", len(delays))
	}
}

func TestDoGivesUp(t *testing.T) {
	attempts := 0
	last := errs.New(errs.ErrorTypeNetwork, 0, "timeout")

	err := Do(context.Background(), func() error {
		attempts++
		return last
	}, &Config{MaxAttempts: 3, Backoff: fixedDelay(time.Millisecond)})

	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if err != last {
		t.Errorf("expected the last error unchanged, got %v", err)
	}
}

func TestDoSingleAttempt(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func() error {
		attempts++
		return errs.New(errs.ErrorTypeNetwork, 0, "timeout")
	}, &Config{MaxAttempts: 0})

	if err == nil || attempts != 1 {
		t.Errorf("expected one failed attempt, got %d (%v)", attempts, err)
	}
}

func TestDoPermanentError(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func() error {
		attempts++
		return errs.New(errs.ErrorTypeAuth, 401, "unauthorized")
	}, &Config{MaxAttempts: 5, Backoff: fixedDelay(time.Millisecond)})

	if attempts != 1 {
		t.Errorf("permanent errors must not be retried, got %d attempts", attempts)
	}
	if errs.TypeOf(err) != errs.ErrorTypeAuth {
		t.Errorf("expected auth error, got %v", err)
	}
}

func TestDoCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	err := Do(ctx, func() error {
		attempts++
		cancel()
		return errs.New(errs.ErrorTypeNetwork, 0, "timeout")
	}, &Config{MaxAttempts: 5, Backoff: fixedDelay(time.Hour)})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func fixedDelay(d time.Duration) *ExponentialBackoff {
	return &ExponentialBackoff{BaseDelay: d, MaxDelay: d, Multiplier: 1}
}
