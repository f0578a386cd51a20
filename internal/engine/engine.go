// Package engine implements the server side of the clock management
// protocol: it validates incoming messages, arbitrates access between
// agents, drives the clock hardware, and correlates asynchronous
// completions back to the requests that caused them.
package engine

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/danmuck/clockctl/internal/clock"
	"github.com/danmuck/clockctl/internal/policy"
	"github.com/danmuck/clockctl/internal/registry"
)

// Options carries everything an Engine needs. Agents, Driver, and Policy
// are required; Guard is optional and nil means every request is allowed.
type Options struct {
	Agents *registry.Table
	Driver clock.Driver
	Policy policy.Policy
	Guard  PermissionGuard
	// MaxPendingTransactions is reported in the protocol attributes. The
	// per-clock serialization below does not depend on it.
	MaxPendingTransactions uint8
	Logger                 zerolog.Logger
}

// Engine owns the protocol state: the agent topology, the per-clock
// request tracker, and the policy tables behind the policy hook.
type Engine struct {
	log        zerolog.Logger
	agents     *registry.Table
	driver     clock.Driver
	policy     policy.Policy
	guard      PermissionGuard
	tracker    *Tracker
	maxPending uint8

	done chan struct{}
}

// New builds an Engine. The tracker is sized to span the physical device
// space the registry was validated against.
func New(opts Options) (*Engine, error) {
	if opts.Agents == nil {
		return nil, fmt.Errorf("engine: agent table is required")
	}
	if opts.Driver == nil {
		return nil, fmt.Errorf("engine: clock driver is required")
	}
	if opts.Policy == nil {
		return nil, fmt.Errorf("engine: policy is required")
	}
	return &Engine{
		log:        opts.Logger,
		agents:     opts.Agents,
		driver:     opts.Driver,
		policy:     opts.Policy,
		guard:      opts.Guard,
		tracker:    NewTracker(opts.Agents.PhysicalCount()),
		maxPending: opts.MaxPendingTransactions,
		done:       make(chan struct{}),
	}, nil
}

// Start launches the completion correlator. It runs until the driver's
// completion channel closes.
func (e *Engine) Start() {
	go e.runCorrelator()
}

// Done is closed once the correlator has drained and exited.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Tracker exposes the request tracker for reporting.
func (e *Engine) Tracker() *Tracker { return e.tracker }

// Agents exposes the agent topology for reporting.
func (e *Engine) Agents() *registry.Table { return e.agents }

// Driver exposes the clock driver for reporting.
func (e *Engine) Driver() clock.Driver { return e.driver }

// Policy exposes the active policy hook.
func (e *Engine) Policy() policy.Policy { return e.policy }

// agentFor resolves the agent behind a service against the topology.
func (e *Engine) agentFor(svc Service) (uint32, *registry.Agent, error) {
	id, err := svc.AgentID()
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", registry.ErrUnknownAgent, err)
	}
	a, err := e.agents.Agent(id)
	if err != nil {
		return 0, nil, err
	}
	return id, a, nil
}

// deviceFor resolves an agent-visible clock index to its backing device.
func (e *Engine) deviceFor(svc Service, index uint32) (uint32, registry.Device, error) {
	id, _, err := e.agentFor(svc)
	if err != nil {
		return 0, registry.Device{}, err
	}
	dev, err := e.agents.Device(id, index)
	if err != nil {
		return 0, registry.Device{}, err
	}
	return id, dev, nil
}
