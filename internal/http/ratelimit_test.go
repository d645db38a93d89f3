package http

import (
	"testing"
	"time"
)

func TestRateLimiter_WindowAndCleanup(t *testing.T) {
	clock := time.Date(2025, 5, 15, 10, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2)
	rl.now = func() time.Time { return clock }

	if !rl.allow("1.2.3.4") || !rl.allow("1.2.3.4") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("1.2.3.4") {
		t.Fatal("third request in the window should be rejected")
	}
	if !rl.allow("5.6.7.8") {
		t.Fatal("other clients have their own window")
	}
	if rl.Hits() != 1 {
		t.Errorf("Hits() = %d, want 1", rl.Hits())
	}

	clock = clock.Add(rateWindow)
	if !rl.allow("1.2.3.4") {
		t.Fatal("a new window resets the counter")
	}

	clock = clock.Add(staleClients + time.Second)
	if n := rl.CleanExpired(); n != 2 {
		t.Errorf("CleanExpired() = %d, want 2", n)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := newRateLimiter(0)
	for i := 0; i < 100; i++ {
		if !rl.allow("1.2.3.4") {
			t.Fatal("a zero limit must not reject")
		}
	}
}
