// Package pacing computes the randomized delays that make automated input
// look like a human at a keyboard.
package pacing

import (
	"context"
	"math/rand"
	"time"
)

const (
	keystrokeMin = 40 * time.Millisecond
	keystrokeMax = 160 * time.Millisecond
)

// KeystrokeDelay returns a per-character typing delay in [40ms, 160ms).
func KeystrokeDelay() time.Duration {
	return keystrokeMin + time.Duration(rand.Int63n(int64(keystrokeMax-keystrokeMin)))
}

// RecipientDelay returns a uniform duration in [min, max] seconds. Swapped or
// non-positive bounds fall back to the original defaults (2s..5s).
func RecipientDelay(minSeconds, maxSeconds int) time.Duration {
	if minSeconds <= 0 {
		minSeconds = 2
	}
	if maxSeconds < minSeconds {
		maxSeconds = 5
		if maxSeconds < minSeconds {
			maxSeconds = minSeconds
		}
	}
	span := float64(maxSeconds-minSeconds) * rand.Float64()
	return time.Duration((float64(minSeconds) + span) * float64(time.Second))
}

// Sleep suspends for d. Only ctx cancellation (process shutdown) cuts it
// short; there is no per-campaign cancellation signal.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
