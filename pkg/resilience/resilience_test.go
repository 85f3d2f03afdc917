package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Minute})
	boom := errors.New("boom")
	fail := func(context.Context) error { return boom }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := b.Call(ctx, fail); !errors.Is(err, boom) {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}
	if err := b.Call(ctx, fail); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open breaker returned %v", err)
	}
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Timeout: time.Minute})
	clock := time.Now()
	b.now = func() time.Time { return clock }

	ctx := context.Background()
	_ = b.Call(ctx, func(context.Context) error { return errors.New("boom") })
	if b.State() != StateOpen {
		t.Fatal("breaker did not trip")
	}

	clock = clock.Add(2 * time.Minute)
	if err := b.Call(ctx, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("state after probe = %v, want closed", b.State())
	}
}

func TestLimiter_Allow(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 1, Burst: 2})
	if !l.Allow() || !l.Allow() {
		t.Fatal("burst tokens not available")
	}
	if l.Allow() {
		t.Fatal("third immediate call should be limited")
	}
	if err := l.Call(context.Background(), func(context.Context) error { return nil }); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Call on exhausted bucket = %v, want ErrRateLimited", err)
	}
}
