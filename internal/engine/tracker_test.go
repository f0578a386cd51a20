package engine

import (
	"errors"
	"testing"
)

func TestClaimSerializesPerDevice(t *testing.T) {
	tr := NewTracker(2)
	first := NewMailbox(0, 64)
	second := NewMailbox(1, 64)

	if err := tr.Claim(0, &Claim{Service: first, Kind: KindGetRate}); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	err := tr.Claim(0, &Claim{Service: second, Kind: KindGetState})
	if !errors.Is(err, ErrClockBusy) {
		t.Fatalf("second claim: err=%v", err)
	}

	// The losing claim must not disturb the winner.
	owner, ok := tr.Owner(0)
	if !ok || owner != Service(first) {
		t.Fatalf("owner after rejected claim: %v ok=%v", owner, ok)
	}

	// Other devices are independent.
	if err := tr.Claim(1, &Claim{Service: second, Kind: KindGetState}); err != nil {
		t.Fatalf("claim on other device: %v", err)
	}
}

func TestReleaseFreesSlot(t *testing.T) {
	tr := NewTracker(1)
	svc := NewMailbox(0, 64)

	if err := tr.Claim(0, &Claim{Service: svc, Kind: KindSetState}); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if tr.Available(0) {
		t.Fatalf("device available while claimed")
	}
	if got := tr.Outstanding(); got != 1 {
		t.Fatalf("outstanding: %d", got)
	}

	tr.Release(0)
	if !tr.Available(0) {
		t.Fatalf("device busy after release")
	}
	if _, ok := tr.Lookup(0); ok {
		t.Fatalf("lookup found a released claim")
	}
	if err := tr.Claim(0, &Claim{Service: svc, Kind: KindGetRate}); err != nil {
		t.Fatalf("reclaim: %v", err)
	}
}

func TestClaimOutsideSlots(t *testing.T) {
	tr := NewTracker(1)
	err := tr.Claim(5, &Claim{Service: NewMailbox(0, 64)})
	if err == nil || errors.Is(err, ErrClockBusy) {
		t.Fatalf("claim past slots: err=%v", err)
	}
	if _, ok := tr.Lookup(5); ok {
		t.Fatalf("lookup past slots succeeded")
	}
}
