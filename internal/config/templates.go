package config

import (
	"fmt"
	"os"
)

// Template returns a worked example configuration.
func Template() string {
	return daemonTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(daemonTemplate), 0o600)
}

const daemonTemplate = `log_level = "info"
log_format = "console"
policy = "counting"
max_pending_transactions = 4
max_payload = 128

[admin]
addr = ":9040"
auth_token = ""
cors_origins = ["http://localhost:3000"]

[sim]
completion_delay_ms = 25

# Devices are physical clocks; their order here is their physical id.

[[devices]]
name = "uart_clk"
rates = [1843200, 3686400, 7372800]
initial_rate = 1843200

[[devices]]
name = "cpu_pll"
min = 200000000
max = 1600000000
step = 100000000
initial_rate = 800000000
running = true

[[devices]]
name = "gpu_clk"
rates = [200000000, 400000000, 600000000]
async = true

# Agents see their clocks through the table below; a clock's position in
# the list is the index the agent puts on the wire.

[[agents]]
name = "psci"

[[agents.clocks]]
device = "cpu_pll"
starts_enabled = true

[[agents.clocks]]
device = "uart_clk"

[[agents.clocks]]
device = "gpu_clk"

[[agents]]
name = "ospm"

[[agents.clocks]]
device = "uart_clk"

[[agents.clocks]]
device = "gpu_clk"
`
