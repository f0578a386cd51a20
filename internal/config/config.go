package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/danmuck/clockctl/internal/policy"
	"github.com/danmuck/clockctl/internal/scmi/wire"
)

// DaemonConfig is the clockd configuration: the simulated device set, the
// agent topology over it, and the admin surface.
type DaemonConfig struct {
	LogLevel   string `toml:"log_level"`
	LogFormat  string `toml:"log_format"`
	Policy     string `toml:"policy"`
	MaxPending uint8  `toml:"max_pending_transactions"`
	// MaxPayload is the transport payload area in bytes. It bounds every
	// response, so it caps how many rates one describe answer carries.
	MaxPayload int `toml:"max_payload"`

	Admin   AdminConfig    `toml:"admin"`
	Sim     SimConfig      `toml:"sim"`
	Devices []DeviceConfig `toml:"devices"`
	Agents  []AgentConfig  `toml:"agents"`
}

type AdminConfig struct {
	Addr        string   `toml:"addr"`
	AuthToken   string   `toml:"auth_token"`
	CorsOrigins []string `toml:"cors_origins"`
}

type SimConfig struct {
	CompletionDelayMS int64 `toml:"completion_delay_ms"`
}

// DeviceConfig declares one physical clock. Exactly one of rates
// (discrete) or step with min/max (linear) must be given.
type DeviceConfig struct {
	Name        string   `toml:"name"`
	Rates       []uint64 `toml:"rates"`
	Min         uint64   `toml:"min"`
	Max         uint64   `toml:"max"`
	Step        uint64   `toml:"step"`
	InitialRate uint64   `toml:"initial_rate"`
	Running     bool     `toml:"running"`
	Async       bool     `toml:"async"`
}

type AgentConfig struct {
	Name   string             `toml:"name"`
	Clocks []AgentClockConfig `toml:"clocks"`
}

// AgentClockConfig binds one slot of an agent's clock table to a declared
// device. Slot order in the file is the index the agent uses on the wire.
type AgentClockConfig struct {
	Device        string `toml:"device"`
	StartsEnabled bool   `toml:"starts_enabled"`
}

func LoadDaemonConfig(path string) (DaemonConfig, error) {
	var cfg DaemonConfig
	if err := loadToml(path, &cfg); err != nil {
		return DaemonConfig{}, err
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}
	if cfg.Policy == "" {
		cfg.Policy = policy.DefaultName
	}
	if cfg.MaxPending == 0 {
		cfg.MaxPending = 1
	}
	if cfg.MaxPayload == 0 {
		cfg.MaxPayload = 128
	}
	if cfg.Admin.Addr == "" {
		cfg.Admin.Addr = ":9040"
	}
	if err := ValidateDaemonConfig(cfg); err != nil {
		return DaemonConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateDaemonConfig(cfg DaemonConfig) error {
	if cfg.MaxPayload < wire.ClockAttributesResponseLen {
		return fmt.Errorf("max_payload %d below the largest fixed response (%d bytes)",
			cfg.MaxPayload, wire.ClockAttributesResponseLen)
	}
	if len(cfg.Devices) == 0 {
		return fmt.Errorf("config declares no devices")
	}
	devices := make(map[string]bool, len(cfg.Devices))
	for i, dev := range cfg.Devices {
		if err := ValidateDeviceEntry(dev); err != nil {
			return fmt.Errorf("device[%d] invalid: %w", i, err)
		}
		if devices[dev.Name] {
			return fmt.Errorf("device %q declared twice", dev.Name)
		}
		devices[dev.Name] = true
	}
	if len(cfg.Agents) == 0 {
		return fmt.Errorf("config declares no agents")
	}
	agents := make(map[string]bool, len(cfg.Agents))
	for i, agent := range cfg.Agents {
		if strings.TrimSpace(agent.Name) == "" {
			return fmt.Errorf("agent[%d] missing name", i)
		}
		if agents[agent.Name] {
			return fmt.Errorf("agent %q declared twice", agent.Name)
		}
		agents[agent.Name] = true
		if len(agent.Clocks) == 0 {
			return fmt.Errorf("agent %q has no clocks", agent.Name)
		}
		for j, c := range agent.Clocks {
			if !devices[c.Device] {
				return fmt.Errorf("agent %q clock[%d] references unknown device %q", agent.Name, j, c.Device)
			}
		}
	}
	return nil
}

func ValidateDeviceEntry(dev DeviceConfig) error {
	if strings.TrimSpace(dev.Name) == "" {
		return fmt.Errorf("name is required")
	}
	discrete := len(dev.Rates) > 0
	linear := dev.Step > 0
	if discrete == linear {
		return fmt.Errorf("device %q needs either a rate list or a step range", dev.Name)
	}
	if linear && dev.Max < dev.Min {
		return fmt.Errorf("device %q range max below min", dev.Name)
	}
	return nil
}
