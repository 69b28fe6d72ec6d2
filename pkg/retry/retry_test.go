package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_SucceedsWithoutRetry(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), DefaultPolicy(), func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Errorf("result = %d; want 42", result)
	}
	if calls != 1 {
		t.Errorf("calls = %d; want 1", calls)
	}
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	policy := Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	result, err := Do(context.Background(), policy, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 7 {
		t.Errorf("result = %d; want 7", result)
	}
	if calls != 3 {
		t.Errorf("calls = %d; want 3", calls)
	}
}

func TestDo_ExhaustsAttemptsAndSurfacesLastError(t *testing.T) {
	calls := 0
	wantErr := errors.New("persistent")
	policy := Policy{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	_, err := Do(context.Background(), policy, func(ctx context.Context) (int, error) {
		calls++
		return 0, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v; want %v", err, wantErr)
	}
	if calls != 3 { // attempts 0,1,2 = MaxAttempts+1 invocations
		t.Errorf("calls = %d; want 3", calls)
	}
}

func TestDo_NonRetryableErrorPropagatesImmediately(t *testing.T) {
	calls := 0
	wantErr := errors.New("semantic")
	policy := Policy{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		RetryOn:      func(error) bool { return false },
	}
	_, err := Do(context.Background(), policy, func(ctx context.Context) (int, error) {
		calls++
		return 0, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v; want %v", err, wantErr)
	}
	if calls != 1 {
		t.Errorf("calls = %d; want 1", calls)
	}
}

func TestDo_RespectsContextCancellationDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{MaxAttempts: 5, InitialDelay: 50 * time.Millisecond, MaxDelay: time.Second}

	calls := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err := Do(ctx, policy, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v; want context.Canceled", err)
	}
}

// TestDo_MonotonicSleepDurations verifies invariant 7: without jitter, the
// sequence of sleep durations is non-decreasing up to MaxDelay.
func TestDo_MonotonicSleepDurations(t *testing.T) {
	var sleeps []time.Duration
	policy := Policy{
		MaxAttempts:  4,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     200 * time.Millisecond,
		Base:         2,
		Jitter:       false,
	}

	start := time.Now()
	last := start
	_, _ = Do(context.Background(), policy, func(ctx context.Context) (int, error) {
		now := time.Now()
		if !now.Equal(start) {
			sleeps = append(sleeps, now.Sub(last))
		}
		last = now
		return 0, errors.New("fail")
	})

	for i := 1; i < len(sleeps); i++ {
		// allow scheduling jitter but the nominal durations must not shrink
		if sleeps[i] < sleeps[i-1]/2 {
			t.Errorf("sleep %d (%v) much smaller than sleep %d (%v); expected non-decreasing", i, sleeps[i], i-1, sleeps[i-1])
		}
	}
}
