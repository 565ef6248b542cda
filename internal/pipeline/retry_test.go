package pipeline

import (
	"testing"
	"time"
)

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{MaxFailures: 10, BaseDelay: time.Second, MaxDelay: 30 * time.Second}

	tests := []struct {
		failures int
		min      time.Duration
		max      time.Duration
	}{
		{0, 0, 0},
		{1, time.Second, 1250 * time.Millisecond},
		{2, 2 * time.Second, 2500 * time.Millisecond},
		{3, 4 * time.Second, 5 * time.Second},
		{6, 30 * time.Second, 37500 * time.Millisecond},
		{64, 30 * time.Second, 37500 * time.Millisecond},
	}

	for _, tt := range tests {
		for i := 0; i < 20; i++ {
			got := p.Delay(tt.failures)
			if got < tt.min || got > tt.max {
				t.Fatalf("Delay(%d) = %v, want within [%v, %v]", tt.failures, got, tt.min, tt.max)
			}
		}
	}
}

func TestRetryPolicyZeroBaseDelay(t *testing.T) {
	p := RetryPolicy{MaxFailures: 3}
	if got := p.Delay(5); got != 0 {
		t.Errorf("Delay() = %v, want 0", got)
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy(2 * time.Second)
	if p.MaxFailures != 10 || p.BaseDelay != 2*time.Second || p.MaxDelay != 30*time.Second {
		t.Errorf("DefaultRetryPolicy() = %+v", p)
	}
}

func TestStateString(t *testing.T) {
	if got := StateWaitOrExit.String(); got != "WAIT_OR_EXIT" {
		t.Errorf("String() = %q", got)
	}
	if got := State(99).String(); got != "UNKNOWN" {
		t.Errorf("String() = %q", got)
	}
}
