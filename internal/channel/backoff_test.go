package channel

import (
	"testing"
	"time"
)

func TestBackoff_Delay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
		{3, 16 * time.Second},
		{4, 30 * time.Second},
		{5, 30 * time.Second},
		{62, 30 * time.Second},
		{1 << 20, 30 * time.Second},
		{-3, 2 * time.Second},
	}

	for _, tt := range tests {
		if got := DefaultBackoff.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoff_NeverExceedsMax(t *testing.T) {
	b := Backoff{Initial: 250 * time.Millisecond, Max: 5 * time.Second}

	prev := time.Duration(0)
	for n := range 100 {
		d := b.Delay(n)
		if d > b.Max {
			t.Fatalf("Delay(%d) = %v exceeds max %v", n, d, b.Max)
		}
		if d < prev {
			t.Fatalf("Delay(%d) = %v shrank from %v", n, d, prev)
		}
		prev = d
	}
}

func TestBackoff_ZeroValueUsesDefaults(t *testing.T) {
	if got := (Backoff{}).Delay(0); got != 2*time.Second {
		t.Errorf("zero Backoff Delay(0) = %v, want 2s", got)
	}
}
