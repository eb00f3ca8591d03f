package scoring

import (
	"testing"
	"time"
)

func TestBreakerHalfOpenProbe(t *testing.T) {
	now := time.Unix(0, 0)
	b := newBreaker(2, time.Second, func() time.Time { return now })

	b.recordFailure()
	if !b.allow() {
		t.Fatal("should allow below threshold")
	}
	b.recordFailure()
	if b.allow() {
		t.Fatal("should be open after threshold")
	}

	now = now.Add(time.Second)
	if !b.allow() {
		t.Fatal("should allow one probe after open duration")
	}
	if b.allow() {
		t.Fatal("should reject while probing")
	}

	b.recordFailure()
	if b.current() != breakerOpen {
		t.Fatalf("failed probe should reopen, got %v", b.current())
	}

	now = now.Add(time.Second)
	if !b.allow() {
		t.Fatal("should probe again")
	}
	b.recordSuccess()
	if b.current() != breakerClosed || !b.allow() {
		t.Fatalf("successful probe should close, got %v", b.current())
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := newBreaker(2, time.Second, nil)
	b.recordFailure()
	b.recordSuccess()
	b.recordFailure()
	if b.current() != breakerClosed {
		t.Fatal("non-consecutive failures should not trip")
	}
}
