// Package sim is an in-memory clock driver. It backs the daemon when no
// real hardware layer is present and gives integration tests a driver
// whose synchronous and asynchronous paths are both exercisable.
package sim

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/clockctl/internal/clock"
)

var ErrClosed = errors.New("sim: driver closed")

// DeviceConfig declares one simulated clock device. Exactly one of Rates
// (discrete) or Step (linear, with Min/Max) must be set.
type DeviceConfig struct {
	Name         string
	InitialState clock.State
	InitialRate  uint64
	Rates        []uint64
	Min          uint64
	Max          uint64
	Step         uint64
	Async        bool
}

// Validate rejects device shapes the driver cannot serve.
func (c DeviceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("sim device missing name")
	}
	discrete := len(c.Rates) > 0
	linear := c.Step > 0
	if discrete == linear {
		return fmt.Errorf("sim device %q needs either a rate list or a step range", c.Name)
	}
	if linear && c.Max < c.Min {
		return fmt.Errorf("sim device %q range max below min", c.Name)
	}
	return nil
}

type device struct {
	cfg   DeviceConfig
	rates []uint64
	state clock.State
	rate  uint64
	fault error
}

// Driver simulates a set of clock devices. Devices marked Async complete
// every State/Rate/SetRate/SetState call through the completion channel
// after Delay; the rest complete inline.
type Driver struct {
	mu      sync.Mutex
	devices []*device
	comp    chan clock.Completion
	delay   time.Duration
	closed  bool
	log     zerolog.Logger
}

// Options configures a Driver.
type Options struct {
	Devices []DeviceConfig
	// Delay postpones asynchronous completions. Zero delivers them as soon
	// as the scheduler allows.
	Delay  time.Duration
	Logger zerolog.Logger
}

func New(opts Options) (*Driver, error) {
	if len(opts.Devices) == 0 {
		return nil, fmt.Errorf("sim driver needs at least one device")
	}
	d := &Driver{
		comp:  make(chan clock.Completion, len(opts.Devices)),
		delay: opts.Delay,
		log:   opts.Logger,
	}
	for i, cfg := range opts.Devices {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("sim device[%d] invalid: %w", i, err)
		}
		dev := &device{
			cfg:   cfg,
			state: cfg.InitialState,
			rate:  cfg.InitialRate,
		}
		if len(cfg.Rates) > 0 {
			dev.rates = append([]uint64(nil), cfg.Rates...)
			sort.Slice(dev.rates, func(a, b int) bool { return dev.rates[a] < dev.rates[b] })
			if dev.rate == 0 {
				dev.rate = dev.rates[0]
			}
		} else if dev.rate == 0 {
			dev.rate = cfg.Min
		}
		d.devices = append(d.devices, dev)
	}
	return d, nil
}

// DeviceCount reports how many devices the driver serves.
func (d *Driver) DeviceCount() int {
	return len(d.devices)
}

// InjectFault makes the next operation against dev fail with err, through
// whichever path (inline or completion) the device uses.
func (d *Driver) InjectFault(dev clock.DeviceID, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(dev) < len(d.devices) {
		d.devices[dev].fault = err
	}
}

// Close stops completion delivery. Operations after Close fail with
// ErrClosed.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.comp)
}

func (d *Driver) Completions() <-chan clock.Completion {
	return d.comp
}

func (d *Driver) Name(dev clock.DeviceID) string {
	if int(dev) >= len(d.devices) {
		return ""
	}
	return d.devices[dev].cfg.Name
}

func (d *Driver) Info(id clock.DeviceID) (clock.Info, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dev, err := d.device(id)
	if err != nil {
		return clock.Info{}, err
	}
	if len(dev.rates) > 0 {
		return clock.Info{
			RateType:  clock.RateTypeDiscrete,
			RateCount: uint32(len(dev.rates)),
		}, nil
	}
	return clock.Info{
		RateType: clock.RateTypeLinear,
		Min:      dev.cfg.Min,
		Max:      dev.cfg.Max,
		Step:     dev.cfg.Step,
	}, nil
}

func (d *Driver) RateFromIndex(id clock.DeviceID, index uint32) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dev, err := d.device(id)
	if err != nil {
		return 0, err
	}
	if len(dev.rates) == 0 {
		return 0, clock.ErrNotSupported
	}
	if int(index) >= len(dev.rates) {
		return 0, clock.ErrOutOfRange
	}
	return dev.rates[index], nil
}

func (d *Driver) State(id clock.DeviceID) (clock.State, error) {
	res, err := d.run(id, func(dev *device) (clock.Result, error) {
		return clock.StateResult{State: dev.state}, nil
	})
	if err != nil {
		return 0, err
	}
	return res.(clock.StateResult).State, nil
}

func (d *Driver) Rate(id clock.DeviceID) (uint64, error) {
	res, err := d.run(id, func(dev *device) (clock.Result, error) {
		return clock.RateResult{Rate: dev.rate}, nil
	})
	if err != nil {
		return 0, err
	}
	return res.(clock.RateResult).Rate, nil
}

func (d *Driver) SetState(id clock.DeviceID, state clock.State) error {
	_, err := d.run(id, func(dev *device) (clock.Result, error) {
		dev.state = state
		return clock.AckResult{}, nil
	})
	return err
}

func (d *Driver) SetRate(id clock.DeviceID, rate uint64, mode clock.RoundMode) error {
	_, err := d.run(id, func(dev *device) (clock.Result, error) {
		resolved, err := dev.resolveRate(rate, mode)
		if err != nil {
			return nil, err
		}
		dev.rate = resolved
		return clock.AckResult{}, nil
	})
	return err
}

// run executes op inline for synchronous devices and schedules it behind
// the completion channel for asynchronous ones.
func (d *Driver) run(id clock.DeviceID, op func(*device) (clock.Result, error)) (clock.Result, error) {
	d.mu.Lock()
	dev, err := d.device(id)
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}
	if !dev.cfg.Async {
		defer d.mu.Unlock()
		if err := dev.takeFault(); err != nil {
			return nil, err
		}
		return op(dev)
	}
	d.mu.Unlock()

	deliver := func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.closed {
			return
		}
		c := clock.Completion{Device: id}
		if err := dev.takeFault(); err != nil {
			c.Err = err
		} else {
			c.Result, c.Err = op(dev)
		}
		d.log.Debug().
			Uint32("device", uint32(id)).
			Err(c.Err).
			Msg("async completion")
		// Channel capacity covers one outstanding operation per device,
		// which the engine's claim discipline guarantees; the send cannot
		// block while the lock is held.
		d.comp <- c
	}
	if d.delay > 0 {
		time.AfterFunc(d.delay, deliver)
	} else {
		go deliver()
	}
	return nil, clock.ErrPending
}

func (d *Driver) device(id clock.DeviceID) (*device, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if int(id) >= len(d.devices) {
		return nil, clock.ErrUnknownDevice
	}
	return d.devices[id], nil
}

func (dev *device) takeFault() error {
	if dev.fault != nil {
		err := dev.fault
		dev.fault = nil
		return err
	}
	return nil
}

func (dev *device) resolveRate(target uint64, mode clock.RoundMode) (uint64, error) {
	if len(dev.rates) > 0 {
		return resolveDiscrete(dev.rates, target, mode)
	}
	return resolveLinear(dev.cfg.Min, dev.cfg.Max, dev.cfg.Step, target, mode)
}

func resolveDiscrete(rates []uint64, target uint64, mode clock.RoundMode) (uint64, error) {
	i := sort.Search(len(rates), func(i int) bool { return rates[i] >= target })
	switch mode {
	case clock.RoundUp:
		if i == len(rates) {
			return 0, clock.ErrOutOfRange
		}
		return rates[i], nil
	case clock.RoundDown:
		if i < len(rates) && rates[i] == target {
			return target, nil
		}
		if i == 0 {
			return 0, clock.ErrOutOfRange
		}
		return rates[i-1], nil
	default:
		if i == len(rates) {
			return rates[len(rates)-1], nil
		}
		if i == 0 || rates[i] == target {
			return rates[i], nil
		}
		if target-rates[i-1] <= rates[i]-target {
			return rates[i-1], nil
		}
		return rates[i], nil
	}
}

func resolveLinear(lo, hi, step, target uint64, mode clock.RoundMode) (uint64, error) {
	switch {
	case target < lo:
		if mode == clock.RoundDown {
			return 0, clock.ErrOutOfRange
		}
		return lo, nil
	case target > hi:
		if mode == clock.RoundUp {
			return 0, clock.ErrOutOfRange
		}
		return hi - (hi-lo)%step, nil
	}
	down := lo + ((target-lo)/step)*step
	if down == target || mode == clock.RoundDown {
		return down, nil
	}
	up := down + step
	if up > hi {
		return down, nil
	}
	if mode == clock.RoundUp {
		return up, nil
	}
	if target-down <= up-target {
		return down, nil
	}
	return up, nil
}
