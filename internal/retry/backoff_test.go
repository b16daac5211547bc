package retry

import (
	"testing"
	"time"
)

func TestExponentialBackoff_DefaultValues(t *testing.T) {
	strategy := NewExponentialBackoff(3)

	if strategy.InitialDelay() != 100*time.Millisecond {
		t.Errorf("Expected InitialDelay=100ms, got %v", strategy.InitialDelay())
	}
	if strategy.MaxDelay() != 30*time.Second {
		t.Errorf("Expected MaxDelay=30s, got %v", strategy.MaxDelay())
	}
	if strategy.Multiplier() != 2.0 {
		t.Errorf("Expected Multiplier=2.0, got %v", strategy.Multiplier())
	}
	if strategy.Jitter() != 0.1 {
		t.Errorf("Expected Jitter=0.1, got %v", strategy.Jitter())
	}
	if strategy.MaxAttempts() != 3 {
		t.Errorf("Expected MaxAttempts=3, got %v", strategy.MaxAttempts())
	}
}

func TestExponentialBackoff_ZeroAttemptsMeansOne(t *testing.T) {
	if got := NewExponentialBackoff(0).MaxAttempts(); got != 1 {
		t.Errorf("Expected MaxAttempts=1, got %d", got)
	}
}

func TestExponentialBackoff_NextDelay_WithoutJitter(t *testing.T) {
	strategy := NewExponentialBackoff(5,
		WithInitialDelay(100*time.Millisecond),
		WithMultiplier(2.0),
		WithJitter(0),
	)

	tests := []struct {
		retry         int
		expectedDelay time.Duration
	}{
		{retry: 0, expectedDelay: 100 * time.Millisecond},
		{retry: 1, expectedDelay: 200 * time.Millisecond},
		{retry: 2, expectedDelay: 400 * time.Millisecond},
		{retry: 3, expectedDelay: 800 * time.Millisecond},
		{retry: 4, expectedDelay: 1600 * time.Millisecond},
	}

	for _, tt := range tests {
		delay := strategy.NextDelay(tt.retry)
		if delay != tt.expectedDelay {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.retry, delay, tt.expectedDelay)
		}
	}
}

func TestExponentialBackoff_NextDelay_MaxDelayCap(t *testing.T) {
	strategy := NewExponentialBackoff(10,
		WithInitialDelay(200*time.Millisecond),
		WithMaxDelay(5*time.Second),
		WithJitter(0),
	)

	// 200ms * 2^5 = 6.4s, capped
	if delay := strategy.NextDelay(5); delay != 5*time.Second {
		t.Errorf("NextDelay(5) = %v, want 5s", delay)
	}
	if delay := strategy.NextDelay(50); delay != 5*time.Second {
		t.Errorf("NextDelay(50) = %v, want 5s", delay)
	}
}

func TestExponentialBackoff_NextDelay_ZeroInitialDelay(t *testing.T) {
	strategy := NewExponentialBackoff(5, WithInitialDelay(0))

	for retry := 0; retry < 5; retry++ {
		if delay := strategy.NextDelay(retry); delay != 0 {
			t.Errorf("NextDelay(%d) = %v, want 0", retry, delay)
		}
	}
}

func TestExponentialBackoff_NextDelay_WithJitter(t *testing.T) {
	tests := []struct {
		name     string
		random   float64
		expected time.Duration
	}{
		{name: "lowest", random: 0.0, expected: 90 * time.Millisecond},
		{name: "middle", random: 0.5, expected: 100 * time.Millisecond},
		{name: "upper", random: 0.75, expected: 105 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strategy := NewExponentialBackoff(3,
				WithInitialDelay(100*time.Millisecond),
				WithJitter(0.1),
				WithJitterFunc(func() float64 { return tt.random }),
			)
			delay := strategy.NextDelay(0)
			diff := delay - tt.expected
			if diff < -time.Microsecond || diff > time.Microsecond {
				t.Errorf("NextDelay(0) = %v, want %v", delay, tt.expected)
			}
		})
	}
}

func TestExponentialBackoff_NextDelay_JitterStaysInBounds(t *testing.T) {
	strategy := NewExponentialBackoff(5,
		WithInitialDelay(200*time.Millisecond),
		WithJitter(0.1),
	)

	for i := 0; i < 200; i++ {
		delay := strategy.NextDelay(1)
		if delay < 360*time.Millisecond || delay > 440*time.Millisecond {
			t.Fatalf("NextDelay(1) = %v, outside [360ms, 440ms]", delay)
		}
	}
}

func TestExponentialBackoff_UnlimitedAttempts(t *testing.T) {
	if got := NewExponentialBackoff(-1).MaxAttempts(); got != -1 {
		t.Errorf("Expected MaxAttempts=-1, got %d", got)
	}
}
