// Package registry maps transport agents to the clock devices they may
// operate on. Each agent sees a dense index space of its own; the registry
// translates an agent-visible clock index to the physical device behind it.
package registry

import (
	"errors"
	"fmt"

	"github.com/danmuck/clockctl/internal/clock"
)

var (
	ErrUnknownAgent    = errors.New("registry: unknown agent")
	ErrIndexOutOfRange = errors.New("registry: clock index out of range")
)

// Device binds one agent-visible clock index to a physical device.
type Device struct {
	Physical clock.DeviceID
	// StartsEnabled marks clocks the platform brings up running on behalf
	// of this agent before any protocol traffic arrives.
	StartsEnabled bool
}

// Agent holds the per-agent device table. The position of a Device in
// Devices is the clock index that agent uses on the wire.
type Agent struct {
	Name    string
	Devices []Device
}

// DeviceCount reports how many clocks the agent can address.
func (a *Agent) DeviceCount() int { return len(a.Devices) }

// Table is the immutable agent/device topology, fixed at construction.
type Table struct {
	agents        []Agent
	physicalCount int
}

// New validates the topology and builds the lookup table. Every physical
// device referenced by an agent must exist in the driver's dense id space.
func New(agents []Agent, physicalCount int) (*Table, error) {
	if len(agents) == 0 {
		return nil, fmt.Errorf("registry: no agents configured")
	}
	if physicalCount <= 0 {
		return nil, fmt.Errorf("registry: no clock devices")
	}
	for ai := range agents {
		a := &agents[ai]
		if a.Name == "" {
			return nil, fmt.Errorf("registry: agent %d missing name", ai)
		}
		for di, dev := range a.Devices {
			if int(dev.Physical) >= physicalCount {
				return nil, fmt.Errorf("registry: agent %q clock %d references device %d beyond %d",
					a.Name, di, dev.Physical, physicalCount)
			}
		}
	}
	return &Table{agents: agents, physicalCount: physicalCount}, nil
}

// AgentCount reports how many agents the table holds.
func (t *Table) AgentCount() int { return len(t.agents) }

// Agents returns the agent table in id order. Callers must not mutate it.
func (t *Table) Agents() []Agent { return t.agents }

// PhysicalCount reports the size of the physical device id space.
func (t *Table) PhysicalCount() int { return t.physicalCount }

// Agent resolves a transport agent id.
func (t *Table) Agent(id uint32) (*Agent, error) {
	if int(id) >= len(t.agents) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAgent, id)
	}
	return &t.agents[id], nil
}

// Device resolves an agent-visible clock index to its backing device.
func (t *Table) Device(agent uint32, index uint32) (Device, error) {
	a, err := t.Agent(agent)
	if err != nil {
		return Device{}, err
	}
	if int(index) >= len(a.Devices) {
		return Device{}, fmt.Errorf("%w: agent %q clock %d", ErrIndexOutOfRange, a.Name, index)
	}
	return a.Devices[index], nil
}
