package agent

import (
	"sync"
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Close()

	if !rl.Allow(1) || !rl.Allow(1) {
		t.Fatal("Expected first two calls to be allowed")
	}
	if rl.Allow(1) {
		t.Error("Expected third call to be rejected")
	}
	if !rl.Allow(2) {
		t.Error("Expected another user to have an independent budget")
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Close()

	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow(1) {
		t.Fatal("Expected first call to be allowed")
	}
	now = now.Add(30 * time.Second)
	if rl.Allow(1) {
		t.Error("Expected call inside the window to be rejected")
	}
	now = now.Add(31 * time.Second)
	if !rl.Allow(1) {
		t.Error("Expected call after the window to be allowed")
	}
}

func TestRateLimiter_Evict(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	defer rl.Close()

	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.Allow(1)
	now = now.Add(45 * time.Second)
	rl.Allow(2)
	now = now.Add(30 * time.Second)

	rl.evict()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.requests[1]; ok {
		t.Error("Expected idle user to be evicted")
	}
	if len(rl.requests[2]) != 1 {
		t.Errorf("Expected active user to keep 1 entry, got %d", len(rl.requests[2]))
	}
}

func TestRateLimiter_CloseIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	rl.Close()
	rl.Close()
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(50, time.Minute)
	defer rl.Close()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow(1) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("Expected exactly 50 allowed calls, got %d", allowed)
	}
}
