package sim

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/clockctl/internal/clock"
)

func newTestDriver(t *testing.T, devices ...DeviceConfig) *Driver {
	t.Helper()
	d, err := New(Options{Devices: devices, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func TestSyncOperations(t *testing.T) {
	d := newTestDriver(t, DeviceConfig{
		Name:         "cpu_pll",
		InitialState: clock.StateRunning,
		InitialRate:  200,
		Rates:        []uint64{100, 200, 400},
	})

	state, err := d.State(0)
	if err != nil || state != clock.StateRunning {
		t.Fatalf("state: got=%v err=%v", state, err)
	}
	rate, err := d.Rate(0)
	if err != nil || rate != 200 {
		t.Fatalf("rate: got=%d err=%v", rate, err)
	}
	if err := d.SetState(0, clock.StateStopped); err != nil {
		t.Fatalf("set state: %v", err)
	}
	state, _ = d.State(0)
	if state != clock.StateStopped {
		t.Fatalf("state after stop: %v", state)
	}
}

func TestDiscreteRounding(t *testing.T) {
	cases := []struct {
		target  uint64
		mode    clock.RoundMode
		want    uint64
		wantErr error
	}{
		{target: 200, mode: clock.RoundDown, want: 200},
		{target: 250, mode: clock.RoundDown, want: 200},
		{target: 250, mode: clock.RoundUp, want: 400},
		{target: 250, mode: clock.RoundNearest, want: 200},
		{target: 350, mode: clock.RoundNearest, want: 400},
		{target: 50, mode: clock.RoundDown, wantErr: clock.ErrOutOfRange},
		{target: 500, mode: clock.RoundUp, wantErr: clock.ErrOutOfRange},
		{target: 50, mode: clock.RoundNearest, want: 100},
		{target: 500, mode: clock.RoundNearest, want: 400},
	}
	for _, tc := range cases {
		d := newTestDriver(t, DeviceConfig{Name: "c", Rates: []uint64{100, 200, 400}})
		err := d.SetRate(0, tc.target, tc.mode)
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("set rate %d %v: err=%v want=%v", tc.target, tc.mode, err, tc.wantErr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("set rate %d %v: %v", tc.target, tc.mode, err)
		}
		if got, _ := d.Rate(0); got != tc.want {
			t.Fatalf("set rate %d %v: got=%d want=%d", tc.target, tc.mode, got, tc.want)
		}
	}
}

func TestLinearRounding(t *testing.T) {
	d := newTestDriver(t, DeviceConfig{Name: "l", Min: 100, Max: 500, Step: 100})

	if err := d.SetRate(0, 250, clock.RoundUp); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	if got, _ := d.Rate(0); got != 300 {
		t.Fatalf("round up: got=%d", got)
	}
	if err := d.SetRate(0, 250, clock.RoundDown); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	if got, _ := d.Rate(0); got != 200 {
		t.Fatalf("round down: got=%d", got)
	}
	if err := d.SetRate(0, 600, clock.RoundUp); !errors.Is(err, clock.ErrOutOfRange) {
		t.Fatalf("above max round up: err=%v", err)
	}
	if err := d.SetRate(0, 50, clock.RoundDown); !errors.Is(err, clock.ErrOutOfRange) {
		t.Fatalf("below min round down: err=%v", err)
	}
}

func TestRateFromIndex(t *testing.T) {
	d := newTestDriver(t, DeviceConfig{Name: "c", Rates: []uint64{100, 200}})

	rate, err := d.RateFromIndex(0, 1)
	if err != nil || rate != 200 {
		t.Fatalf("rate from index: got=%d err=%v", rate, err)
	}
	if _, err := d.RateFromIndex(0, 2); !errors.Is(err, clock.ErrOutOfRange) {
		t.Fatalf("index past end: err=%v", err)
	}

	lin := newTestDriver(t, DeviceConfig{Name: "l", Min: 1, Max: 10, Step: 1})
	if _, err := lin.RateFromIndex(0, 0); !errors.Is(err, clock.ErrNotSupported) {
		t.Fatalf("linear indexed read: err=%v", err)
	}
}

func TestAsyncCompletion(t *testing.T) {
	d := newTestDriver(t, DeviceConfig{
		Name:  "a",
		Rates: []uint64{100, 200},
		Async: true,
	})

	if _, err := d.Rate(0); !errors.Is(err, clock.ErrPending) {
		t.Fatalf("async rate must report pending: err=%v", err)
	}
	c := waitCompletion(t, d)
	if c.Err != nil {
		t.Fatalf("completion err: %v", c.Err)
	}
	res, ok := c.Result.(clock.RateResult)
	if !ok {
		t.Fatalf("completion type: %T", c.Result)
	}
	if res.Rate != 100 {
		t.Fatalf("completion rate: %d", res.Rate)
	}

	if err := d.SetState(0, clock.StateRunning); !errors.Is(err, clock.ErrPending) {
		t.Fatalf("async set state must report pending: err=%v", err)
	}
	c = waitCompletion(t, d)
	if _, ok := c.Result.(clock.AckResult); !ok || c.Err != nil {
		t.Fatalf("set completion: %+v", c)
	}
}

func TestInjectFault(t *testing.T) {
	d := newTestDriver(t, DeviceConfig{Name: "c", Rates: []uint64{100}})
	d.InjectFault(0, clock.ErrNotSupported)
	if _, err := d.Rate(0); !errors.Is(err, clock.ErrNotSupported) {
		t.Fatalf("fault not surfaced: err=%v", err)
	}
	// One-shot: the next call succeeds.
	if _, err := d.Rate(0); err != nil {
		t.Fatalf("fault not cleared: %v", err)
	}

	a := newTestDriver(t, DeviceConfig{Name: "a", Rates: []uint64{100}, Async: true})
	a.InjectFault(0, clock.ErrOutOfRange)
	if err := a.SetRate(0, 100, clock.RoundDown); !errors.Is(err, clock.ErrPending) {
		t.Fatalf("async op: err=%v", err)
	}
	c := waitCompletion(t, a)
	if !errors.Is(c.Err, clock.ErrOutOfRange) {
		t.Fatalf("async fault: %+v", c)
	}
}

func TestClose(t *testing.T) {
	d, err := New(Options{Devices: []DeviceConfig{{Name: "c", Rates: []uint64{1}}}, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	d.Close()
	if _, err := d.Rate(0); !errors.Is(err, ErrClosed) {
		t.Fatalf("rate after close: err=%v", err)
	}
	if _, open := <-d.Completions(); open {
		t.Fatalf("completion channel still open")
	}
}

func waitCompletion(t *testing.T, d *Driver) clock.Completion {
	t.Helper()
	select {
	case c := <-d.Completions():
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for completion")
		return clock.Completion{}
	}
}
