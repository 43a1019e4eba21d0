package proxy

import (
	"testing"
	"time"
)

func TestLimiterStore(t *testing.T) {
	t.Run("simple", func(t *testing.T) {
		store := newLimiterStore(1, 1)

		if !store.allow("a") {
			t.Error("Expected first request to pass")
		}
		if store.allow("a") {
			t.Error("Expected second immediate request to be limited")
		}
		if !store.allow("b") {
			t.Error("Expected a different client to have its own bucket")
		}
	})

	t.Run("reliability", func(t *testing.T) {
		store := newLimiterStore(1, 1)
		now := time.Now()
		store.now = func() time.Time { return now }

		store.allow("a")
		now = now.Add(2 * time.Second)
		if !store.allow("a") {
			t.Error("Expected bucket to refill after a second")
		}
	})

	t.Run("idle clients are swept", func(t *testing.T) {
		store := newLimiterStore(1, 1)
		now := time.Now()
		store.now = func() time.Time { return now }
		store.lastSweep = now

		store.allow("a")
		store.allow("b")
		if store.size() != 2 {
			t.Fatalf("Expected 2 clients, got %d", store.size())
		}

		now = now.Add(limiterIdle + 2*time.Minute)
		store.allow("c")
		if store.size() != 1 {
			t.Errorf("Expected idle clients swept, got %d", store.size())
		}
	})
}

func TestOriginPolicy(t *testing.T) {
	t.Run("empty allows any", func(t *testing.T) {
		p := newOriginPolicy(nil)
		if !p.allows("https://anything.example") {
			t.Error("Expected empty allow-list to allow any origin")
		}
	})

	t.Run("trailing slash ignored", func(t *testing.T) {
		p := newOriginPolicy([]string{" https://app.example.com/ "})
		if !p.allows("https://app.example.com") {
			t.Error("Expected normalized entry to match")
		}
	})

	t.Run("star", func(t *testing.T) {
		p := newOriginPolicy([]string{"*"})
		if !p.allows("http://localhost:3000") {
			t.Error("Expected '*' to allow everything")
		}
	})
}
