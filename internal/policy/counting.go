package policy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/danmuck/clockctl/internal/clock"
	"github.com/danmuck/clockctl/internal/registry"
)

var (
	ErrNoReferences = errors.New("policy: disable with no enable references held")
	ErrTableRange   = errors.New("policy: clock index outside state table")
)

// Counting is the default state policy for platforms where several agents
// share clocks. It remembers, per agent, which clocks that agent asked to
// run, and holds a shared reference count per clock index so the hardware
// only stops once the last agent has disabled it.
//
// Both tables are sized by the physical device count but addressed by the
// agent-visible clock index the protocol layer passes in. Rows can be wider
// than an agent's own device table.
type Counting struct {
	mu    sync.Mutex
	state [][]clock.State
	refs  []uint32
	log   zerolog.Logger
}

// NewCounting builds the policy and seeds it from the agent topology:
// every clock an agent starts enabled is recorded as running for that
// agent, with one reference held.
func NewCounting(deps Deps) (*Counting, error) {
	if deps.Agents == nil {
		return nil, fmt.Errorf("policy: counting needs an agent table")
	}
	agents := deps.Agents.Agents()
	c := &Counting{
		state: make([][]clock.State, len(agents)),
		refs:  make([]uint32, deps.Agents.PhysicalCount()),
		log:   deps.Logger,
	}
	for ai := range agents {
		c.state[ai] = make([]clock.State, deps.Agents.PhysicalCount())
		for di, dev := range agents[ai].Devices {
			if !dev.StartsEnabled {
				continue
			}
			c.state[ai][di] = clock.StateRunning
			c.refs[di]++
		}
	}
	return c, nil
}

// RateSet approves rate changes unmodified. Rate arbitration between
// agents is a platform concern this policy does not take on.
func (c *Counting) RateSet(_ Phase, p RateParams) (Decision, RateParams, error) {
	return Execute, p, nil
}

func (c *Counting) StateSet(phase Phase, p StateParams) (Decision, StateParams, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.check(p.Agent, p.Clock); err != nil {
		return Skip, p, err
	}
	if phase == PhasePostCompletion {
		c.commit(p)
		return Execute, p, nil
	}

	cur := c.state[p.Agent][p.Clock]
	if cur == p.State {
		// Repeat of an already honored request.
		return Skip, p, nil
	}
	switch p.State {
	case clock.StateRunning:
		if c.refs[p.Clock] > 0 {
			c.log.Warn().
				Uint32("agent", p.Agent).
				Uint32("clock", p.Clock).
				Uint32("refs", c.refs[p.Clock]).
				Msg("enable for a clock other agents already run")
		}
		return Execute, p, nil
	case clock.StateStopped:
		switch c.refs[p.Clock] {
		case 0:
			return Skip, p, fmt.Errorf("%w: agent %d clock %d", ErrNoReferences, p.Agent, p.Clock)
		case 1:
			return Execute, p, nil
		default:
			// Other agents still need the clock. The caller answers the
			// agent and runs the post phase so the reference drops.
			return Skip, p, nil
		}
	default:
		return Skip, p, fmt.Errorf("policy: unknown clock state %d", p.State)
	}
}

// commit records the outcome of a finished state change. Repeats are
// absorbed without touching the reference count.
func (c *Counting) commit(p StateParams) {
	if c.state[p.Agent][p.Clock] == p.State {
		return
	}
	c.state[p.Agent][p.Clock] = p.State
	if p.State == clock.StateRunning {
		c.refs[p.Clock]++
		return
	}
	if c.refs[p.Clock] == 0 {
		c.log.Error().
			Uint32("agent", p.Agent).
			Uint32("clock", p.Clock).
			Msg("reference count underflow on disable commit")
		return
	}
	c.refs[p.Clock]--
}

func (c *Counting) check(agent, idx uint32) error {
	if int(agent) >= len(c.state) {
		return fmt.Errorf("%w: agent %d", ErrTableRange, agent)
	}
	if int(idx) >= len(c.refs) {
		return fmt.Errorf("%w: clock %d of %d", ErrTableRange, idx, len(c.refs))
	}
	return nil
}

// Snapshot copies the policy tables for reporting.
func (c *Counting) Snapshot() CountingSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := CountingSnapshot{
		States: make([][]clock.State, len(c.state)),
		Refs:   append([]uint32(nil), c.refs...),
	}
	for i := range c.state {
		snap.States[i] = append([]clock.State(nil), c.state[i]...)
	}
	return snap
}

// CountingSnapshot is a point-in-time copy of the counting tables.
// States is indexed [agent][clock index], Refs by clock index.
type CountingSnapshot struct {
	States [][]clock.State `json:"states"`
	Refs   []uint32        `json:"refs"`
}

var _ Policy = (*Counting)(nil)
