package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterWindow(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(MemoryLimiterConfig{Now: func() time.Time { return now }})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		decision, err := limiter.Allow(ctx, "ip:1.2.3.4", 3, time.Minute)
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !decision.Allowed {
			t.Fatalf("request %d denied under limit", i+1)
		}
		if decision.Remaining != 3-(i+1) {
			t.Fatalf("remaining = %d after request %d", decision.Remaining, i+1)
		}
	}

	decision, err := limiter.Allow(ctx, "ip:1.2.3.4", 3, time.Minute)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if decision.Allowed {
		t.Fatal("request over limit allowed")
	}

	now = now.Add(2 * time.Minute)
	decision, err = limiter.Allow(ctx, "ip:1.2.3.4", 3, time.Minute)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("request denied after window reset")
	}
}

func TestMemoryLimiterIsolatesKeys(t *testing.T) {
	limiter := NewMemoryLimiter(MemoryLimiterConfig{})
	ctx := context.Background()

	if _, err := limiter.Allow(ctx, "a", 1, time.Minute); err != nil {
		t.Fatal(err)
	}
	decision, err := limiter.Allow(ctx, "b", 1, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Allowed {
		t.Fatal("fresh key denied")
	}
}

func TestMemoryLimiterZeroLimitDisables(t *testing.T) {
	limiter := NewMemoryLimiter(MemoryLimiterConfig{})
	decision, err := limiter.Allow(context.Background(), "a", 0, time.Minute)
	if err != nil || !decision.Allowed {
		t.Fatalf("zero limit should disable limiting (err %v)", err)
	}
}
