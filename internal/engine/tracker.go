package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/clockctl/internal/clock"
)

var ErrClockBusy = errors.New("engine: clock has an outstanding operation")

// RequestKind names the hardware operation a claim is waiting on.
type RequestKind int

const (
	KindGetState RequestKind = iota
	KindGetRate
	KindSetRate
	KindSetState
)

func (k RequestKind) String() string {
	switch k {
	case KindGetState:
		return "get-state"
	case KindGetRate:
		return "get-rate"
	case KindSetRate:
		return "set-rate"
	case KindSetState:
		return "set-state"
	default:
		return "unknown"
	}
}

// Claim records everything needed to finish a request once the hardware
// answers: who asked, what kind of operation, and the parameters the
// post-completion policy call wants back.
//
// ClockIndex holds the index the agent used on the wire, not the physical
// device id the slot is keyed by. The policy tables run on that index, so
// it is what the completion path hands back to them.
type Claim struct {
	Service    Service
	Agent      uint32
	Kind       RequestKind
	ClockIndex uint32
	Target     clock.State
	Rate       uint64
	Round      clock.RoundMode

	start time.Time
}

// Age reports how long the claim has been outstanding.
func (c *Claim) Age() time.Duration { return time.Since(c.start) }

// Tracker serializes requests per physical clock device. Each device has
// one slot; a claim against an occupied slot fails with ErrClockBusy and
// is never queued.
type Tracker struct {
	mu    sync.Mutex
	slots []*Claim
}

// NewTracker builds a tracker with one slot per physical device.
func NewTracker(devices int) *Tracker {
	return &Tracker{slots: make([]*Claim, devices)}
}

// Claim reserves the device's slot for c. The caller must pair every
// successful claim with exactly one Release on a terminal outcome.
func (t *Tracker) Claim(dev clock.DeviceID, c *Claim) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(dev) >= len(t.slots) {
		return fmt.Errorf("engine: no slot for device %d", dev)
	}
	if t.slots[dev] != nil {
		return fmt.Errorf("%w: device %d", ErrClockBusy, dev)
	}
	c.start = time.Now()
	t.slots[dev] = c
	return nil
}

// Release clears the device's slot.
func (t *Tracker) Release(dev clock.DeviceID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(dev) < len(t.slots) {
		t.slots[dev] = nil
	}
}

// Lookup returns the outstanding claim for the device, if any.
func (t *Tracker) Lookup(dev clock.DeviceID) (*Claim, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(dev) >= len(t.slots) || t.slots[dev] == nil {
		return nil, false
	}
	return t.slots[dev], true
}

// Available reports whether the device has no outstanding operation.
func (t *Tracker) Available(dev clock.DeviceID) bool {
	_, busy := t.Lookup(dev)
	return !busy
}

// Owner returns the service waiting on the device.
func (t *Tracker) Owner(dev clock.DeviceID) (Service, bool) {
	c, ok := t.Lookup(dev)
	if !ok {
		return nil, false
	}
	return c.Service, true
}

// Outstanding counts occupied slots.
func (t *Tracker) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.slots {
		if c != nil {
			n++
		}
	}
	return n
}
