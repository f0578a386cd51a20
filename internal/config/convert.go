package config

import (
	"fmt"
	"time"

	"github.com/danmuck/clockctl/internal/clock"
	"github.com/danmuck/clockctl/internal/clock/sim"
	"github.com/danmuck/clockctl/internal/registry"
)

// SimDevices maps the declared devices onto the simulator, in declaration
// order. The position of a device in the file is its physical id.
func SimDevices(cfg DaemonConfig) []sim.DeviceConfig {
	devices := make([]sim.DeviceConfig, 0, len(cfg.Devices))
	for _, dev := range cfg.Devices {
		state := clock.StateStopped
		if dev.Running {
			state = clock.StateRunning
		}
		devices = append(devices, sim.DeviceConfig{
			Name:         dev.Name,
			InitialState: state,
			InitialRate:  dev.InitialRate,
			Rates:        dev.Rates,
			Min:          dev.Min,
			Max:          dev.Max,
			Step:         dev.Step,
			Async:        dev.Async,
		})
	}
	return devices
}

// AgentTopology resolves each agent's clock table against the device
// declarations, turning device names into physical ids.
func AgentTopology(cfg DaemonConfig) ([]registry.Agent, error) {
	physical := make(map[string]clock.DeviceID, len(cfg.Devices))
	for i, dev := range cfg.Devices {
		physical[dev.Name] = clock.DeviceID(i)
	}
	agents := make([]registry.Agent, 0, len(cfg.Agents))
	for _, agent := range cfg.Agents {
		entry := registry.Agent{Name: agent.Name}
		for _, c := range agent.Clocks {
			id, ok := physical[c.Device]
			if !ok {
				return nil, fmt.Errorf("agent %q references unknown device %q", agent.Name, c.Device)
			}
			entry.Devices = append(entry.Devices, registry.Device{
				Physical:      id,
				StartsEnabled: c.StartsEnabled,
			})
		}
		agents = append(agents, entry)
	}
	return agents, nil
}

// CompletionDelay converts the simulator delay setting.
func CompletionDelay(cfg DaemonConfig) time.Duration {
	return time.Duration(cfg.Sim.CompletionDelayMS) * time.Millisecond
}
