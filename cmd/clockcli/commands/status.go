package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status and the agent topology",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx := context.Background()

	status, err := client.Status(ctx)
	if err != nil {
		return err
	}
	agents, err := client.Agents(ctx)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]any{
			"status": status,
			"agents": agents,
		})
	}

	fmt.Printf("policy:      %s\n", status.Policy)
	fmt.Printf("devices:     %d\n", status.Devices)
	fmt.Printf("agents:      %d\n", status.Agents)
	fmt.Printf("outstanding: %d\n", status.Outstanding)
	fmt.Println()

	cyan.Printf("%-6s %-16s %s\n", "AGENT", "NAME", "CLOCKS")
	for _, agent := range agents {
		fmt.Printf("%-6d %-16s %d\n", agent.ID, agent.Name, agent.Clocks)
	}
	return nil
}
