package middleware

import (
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	now := time.Unix(0, 0)
	rl := NewRateLimiterWithNow(2, time.Minute, func() time.Time { return now })

	if !rl.Allow("ip") || !rl.Allow("ip") {
		t.Fatalf("expected first two allowed")
	}
	if rl.Allow("ip") {
		t.Fatalf("expected third denied")
	}
	if !rl.Allow("other") {
		t.Fatalf("keys must be independent")
	}
}

func TestRateLimiter_WindowReset(t *testing.T) {
	now := time.Unix(0, 0)
	rl := NewRateLimiterWithNow(1, time.Minute, func() time.Time { return now })

	if !rl.Allow("ip") {
		t.Fatalf("expected allowed")
	}
	if rl.Allow("ip") {
		t.Fatalf("expected denied within window")
	}

	now = now.Add(2 * time.Minute)
	if !rl.Allow("ip") {
		t.Fatalf("expected allowed after window")
	}
}
