package ratelimit

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestInMemoryLimiter_burstThenRate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewInMemoryLimiter(5, time.Minute, 3, clock)

	for i := 0; i < 3; i++ {
		if !l.Allow("alice") {
			t.Fatalf("request %d inside the burst was refused", i)
		}
	}
	if l.Allow("alice") {
		t.Fatal("request past the burst was allowed")
	}
	if !l.Allow("bob") {
		t.Fatal("keys must not share a bucket")
	}

	clock.Advance(12 * time.Second)
	if !l.Allow("alice") {
		t.Fatal("a token should refill after one interval")
	}
	if l.Allow("alice") {
		t.Fatal("only one token should have refilled")
	}
}

func TestInMemoryLimiter_evictsIdleKeys(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewInMemoryLimiter(1, time.Second, 1, clock)

	l.Allow("alice")
	l.Allow("bob")
	if l.Len() != 2 {
		t.Fatalf("Len() = %d", l.Len())
	}

	clock.Advance(time.Minute)
	l.Allow("carol")
	if l.Len() != 1 {
		t.Errorf("idle keys not evicted, Len() = %d", l.Len())
	}
}
