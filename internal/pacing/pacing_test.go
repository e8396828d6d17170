package pacing

import (
	"context"
	"testing"
	"time"
)

func TestKeystrokeDelayBounds(t *testing.T) {
	for i := 0; i < 1000; i++ {
		d := KeystrokeDelay()
		if d < 40*time.Millisecond || d >= 160*time.Millisecond {
			t.Fatalf("keystroke delay out of range: %v", d)
		}
	}
}

func TestRecipientDelayBounds(t *testing.T) {
	for i := 0; i < 1000; i++ {
		d := RecipientDelay(2, 5)
		if d < 2*time.Second || d > 5*time.Second {
			t.Fatalf("recipient delay out of range: %v", d)
		}
	}
}

func TestRecipientDelayDefaults(t *testing.T) {
	// Zero/swapped bounds fall back to the 2s..5s defaults.
	for i := 0; i < 100; i++ {
		d := RecipientDelay(0, 0)
		if d < 2*time.Second || d > 5*time.Second {
			t.Fatalf("default delay out of range: %v", d)
		}
	}
	d := RecipientDelay(7, 3)
	if d < 7*time.Second {
		t.Fatalf("swapped bounds should clamp max up to min, got %v", d)
	}
}

func TestSleepHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); err == nil {
		t.Fatal("expected context error")
	}

	start := time.Now()
	if err := Sleep(context.Background(), 10*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatal("returned before the delay elapsed")
	}
}
