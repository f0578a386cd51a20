package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/danmuck/clockctl/internal/clock"
	"github.com/danmuck/clockctl/internal/scmi"
	"github.com/danmuck/clockctl/internal/scmi/wire"
)

func TestAsyncAttributesCorrelated(t *testing.T) {
	h := newHarness(t)
	mb := NewMailbox(0, 128)

	resp, err := wire.DecodeClockAttributesResponse(h.callAsync(t, mb, scmi.MsgClockAttributes, wire.ClockAttributesRequest{ClockID: 2}.Encode()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != scmi.StatusSuccess {
		t.Fatalf("status = %s", resp.Status)
	}
	if resp.Name != "gpu_clk" {
		t.Fatalf("name = %q, want gpu_clk", resp.Name)
	}
	if resp.Attributes&wire.AttributesFlagEnabled != 0 {
		t.Fatalf("stopped clock reported enabled")
	}
	waitAvailable(t, h.engine.Tracker(), 2)
}

func TestAsyncRateSetCorrelated(t *testing.T) {
	h := newHarness(t)
	mb := NewMailbox(0, 128)

	if st := respStatus(t, h.callAsync(t, mb, scmi.MsgClockRateSet, rateSetPayload(2, 150, wire.RateSetFlagRoundUp))); st != scmi.StatusSuccess {
		t.Fatalf("status = %s", st)
	}
	waitAvailable(t, h.engine.Tracker(), 2)

	resp, err := wire.DecodeRateGetResponse(h.callAsync(t, mb, scmi.MsgClockRateGet, wire.RateGetRequest{ClockID: 2}.Encode()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := resp.Rate(); got != 200 {
		t.Fatalf("rate = %d, want 200", got)
	}
}

// TestAsyncStateSetCommitsPolicy covers the commit phase running off the
// completion path rather than inline.
func TestAsyncStateSetCommitsPolicy(t *testing.T) {
	h := newHarness(t)
	mb := NewMailbox(0, 128)

	if st := respStatus(t, h.callAsync(t, mb, scmi.MsgClockConfigSet, configSetPayload(2, wire.ConfigSetFlagEnable))); st != scmi.StatusSuccess {
		t.Fatalf("enable status = %s", st)
	}
	waitRefs(t, h, 2, 1)
	waitAvailable(t, h.engine.Tracker(), 2)

	resp, err := wire.DecodeClockAttributesResponse(h.callAsync(t, mb, scmi.MsgClockAttributes, wire.ClockAttributesRequest{ClockID: 2}.Encode()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Attributes&wire.AttributesFlagEnabled == 0 {
		t.Fatalf("enabled clock reported disabled")
	}

	if st := respStatus(t, h.callAsync(t, mb, scmi.MsgClockConfigSet, configSetPayload(2, 0))); st != scmi.StatusSuccess {
		t.Fatalf("disable status = %s", st)
	}
	waitRefs(t, h, 2, 0)
	waitAvailable(t, h.engine.Tracker(), 2)
}

func waitRefs(t *testing.T, h *harness, idx int, want uint32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.counting.Snapshot().Refs[idx] == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("refs[%d] = %d, want %d", idx, h.counting.Snapshot().Refs[idx], want)
}

// TestCompletionFaultMapping pins the status a failed completion turns
// into. An invalid-parameter fault maps to a generic error on this path,
// not to invalid parameters like its synchronous counterpart.
func TestCompletionFaultMapping(t *testing.T) {
	tests := []struct {
		name  string
		fault error
		want  scmi.Status
	}{
		{name: "not supported", fault: clock.ErrNotSupported, want: scmi.StatusNotSupported},
		{name: "out of range", fault: clock.ErrOutOfRange, want: scmi.StatusInvalidParameters},
		{name: "invalid param", fault: clock.ErrInvalidParam, want: scmi.StatusGenericError},
		{name: "hardware fault", fault: errors.New("sequencer wedged"), want: scmi.StatusGenericError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			mb := NewMailbox(0, 128)

			h.driver.InjectFault(2, tt.fault)
			if st := respStatus(t, h.callAsync(t, mb, scmi.MsgClockConfigSet, configSetPayload(2, wire.ConfigSetFlagEnable))); st != tt.want {
				t.Fatalf("status = %s, want %s", st, tt.want)
			}
			// A failed completion must not commit the enable.
			if refs := h.counting.Snapshot().Refs[2]; refs != 0 {
				t.Fatalf("failed enable committed a reference: refs = %d", refs)
			}
			waitAvailable(t, h.engine.Tracker(), 2)
		})
	}
}

func TestCompletionWithoutClaim(t *testing.T) {
	h := newHarness(t)

	// A completion for an idle device is dropped, not dispatched.
	h.engine.handleCompletion(clock.Completion{Device: 0, Result: clock.RateResult{Rate: 100}})
	if h.engine.Tracker().Outstanding() != 0 {
		t.Fatalf("spurious completion created a claim")
	}
}

func TestCompletionWithoutResult(t *testing.T) {
	h := newHarness(t)
	mb := NewMailbox(0, 128)

	claim := &Claim{Service: mb, Agent: 0, Kind: KindGetRate, ClockIndex: 0}
	if err := h.engine.tracker.Claim(0, claim); err != nil {
		t.Fatalf("claim: %v", err)
	}
	h.engine.handleCompletion(clock.Completion{Device: 0})

	resp, ok := mb.TryTake()
	if !ok {
		t.Fatalf("no response for empty completion")
	}
	if st := respStatus(t, resp); st != scmi.StatusGenericError {
		t.Fatalf("status = %s, want generic error", st)
	}
	if !h.engine.Tracker().Available(0) {
		t.Fatalf("empty completion left the device claimed")
	}
}

func TestCorrelatorStopsOnClose(t *testing.T) {
	h := newHarness(t)

	h.driver.Close()
	select {
	case <-h.engine.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("correlator did not stop after driver close")
	}
}
