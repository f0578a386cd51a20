package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/clockctl/internal/clock"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clockd.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clockd.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}

	cfg, err := LoadDaemonConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Devices) != 3 || len(cfg.Agents) != 2 {
		t.Fatalf("template has %d devices, %d agents", len(cfg.Devices), len(cfg.Agents))
	}
	if cfg.Policy != "counting" {
		t.Fatalf("policy = %q", cfg.Policy)
	}
	if cfg.MaxPending != 4 {
		t.Fatalf("max pending = %d", cfg.MaxPending)
	}
	if got := CompletionDelay(cfg); got != 25*time.Millisecond {
		t.Fatalf("completion delay = %v", got)
	}

	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("overwrite without flag succeeded")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("overwrite with flag: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
[[devices]]
name = "uart_clk"
rates = [100, 200]

[[agents]]
name = "psci"

[[agents.clocks]]
device = "uart_clk"
`)
	cfg, err := LoadDaemonConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "console" {
		t.Fatalf("log defaults = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.Policy != "counting" {
		t.Fatalf("policy default = %q", cfg.Policy)
	}
	if cfg.MaxPending != 1 {
		t.Fatalf("max pending default = %d", cfg.MaxPending)
	}
	if cfg.MaxPayload != 128 {
		t.Fatalf("max payload default = %d", cfg.MaxPayload)
	}
	if cfg.Admin.Addr != ":9040" {
		t.Fatalf("admin addr default = %q", cfg.Admin.Addr)
	}
}

func TestLoadRejectsBadToml(t *testing.T) {
	path := writeConfig(t, `devices = "not a table"`)
	if _, err := LoadDaemonConfig(path); err == nil {
		t.Fatalf("bad toml loaded")
	}
	if _, err := LoadDaemonConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("missing file loaded")
	}
}

func validConfig() DaemonConfig {
	return DaemonConfig{
		MaxPayload: 128,
		Devices: []DeviceConfig{
			{Name: "uart_clk", Rates: []uint64{100, 200}},
			{Name: "cpu_pll", Min: 100, Max: 500, Step: 100},
		},
		Agents: []AgentConfig{
			{Name: "psci", Clocks: []AgentClockConfig{{Device: "uart_clk"}, {Device: "cpu_pll"}}},
		},
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DaemonConfig)
	}{
		{name: "no devices", mutate: func(c *DaemonConfig) { c.Devices = nil }},
		{name: "no agents", mutate: func(c *DaemonConfig) { c.Agents = nil }},
		{name: "device without name", mutate: func(c *DaemonConfig) { c.Devices[0].Name = " " }},
		{name: "duplicate device", mutate: func(c *DaemonConfig) { c.Devices[1] = c.Devices[0] }},
		{name: "rates and range together", mutate: func(c *DaemonConfig) { c.Devices[0].Step = 50 }},
		{name: "neither rates nor range", mutate: func(c *DaemonConfig) { c.Devices[0].Rates = nil }},
		{name: "range max below min", mutate: func(c *DaemonConfig) { c.Devices[1].Max = 50 }},
		{name: "agent without name", mutate: func(c *DaemonConfig) { c.Agents[0].Name = "" }},
		{name: "agent without clocks", mutate: func(c *DaemonConfig) { c.Agents[0].Clocks = nil }},
		{name: "unknown device reference", mutate: func(c *DaemonConfig) { c.Agents[0].Clocks[0].Device = "ghost_clk" }},
		{name: "payload below fixed responses", mutate: func(c *DaemonConfig) { c.MaxPayload = 16 }},
		{name: "duplicate agent", mutate: func(c *DaemonConfig) {
			c.Agents = append(c.Agents, c.Agents[0])
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			if err := ValidateDaemonConfig(cfg); err == nil {
				t.Fatalf("validation passed")
			}
		})
	}

	if err := ValidateDaemonConfig(validConfig()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestAgentTopology(t *testing.T) {
	cfg := validConfig()
	cfg.Agents = []AgentConfig{
		{Name: "psci", Clocks: []AgentClockConfig{
			{Device: "cpu_pll", StartsEnabled: true},
			{Device: "uart_clk"},
		}},
	}

	agents, err := AgentTopology(cfg)
	if err != nil {
		t.Fatalf("topology: %v", err)
	}
	if len(agents) != 1 || len(agents[0].Devices) != 2 {
		t.Fatalf("topology shape = %+v", agents)
	}
	if agents[0].Devices[0].Physical != 1 || !agents[0].Devices[0].StartsEnabled {
		t.Fatalf("clock 0 = %+v, want physical 1 enabled", agents[0].Devices[0])
	}
	if agents[0].Devices[1].Physical != 0 || agents[0].Devices[1].StartsEnabled {
		t.Fatalf("clock 1 = %+v, want physical 0 stopped", agents[0].Devices[1])
	}

	cfg.Agents[0].Clocks[0].Device = "ghost_clk"
	if _, err := AgentTopology(cfg); err == nil {
		t.Fatalf("unknown device resolved")
	}
}

func TestSimDevices(t *testing.T) {
	cfg := validConfig()
	cfg.Devices[0].Running = true
	cfg.Devices[0].InitialRate = 200

	devices := SimDevices(cfg)
	if len(devices) != 2 {
		t.Fatalf("device count = %d", len(devices))
	}
	if devices[0].InitialState != clock.StateRunning || devices[0].InitialRate != 200 {
		t.Fatalf("device 0 = %+v", devices[0])
	}
	if devices[1].Step != 100 || devices[1].Min != 100 || devices[1].Max != 500 {
		t.Fatalf("device 1 = %+v", devices[1])
	}
}
