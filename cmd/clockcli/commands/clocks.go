package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var clocksAgent string

var clocksCmd = &cobra.Command{
	Use:   "clocks",
	Short: "List the clocks visible to one agent",
	RunE:  runClocks,
}

func init() {
	clocksCmd.Flags().StringVar(&clocksAgent, "agent", "0", "agent name or index")
	rootCmd.AddCommand(clocksCmd)
}

func runClocks(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	clocks, err := client.Clocks(context.Background(), clocksAgent)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(clocks)
	}

	cyan.Printf("%-6s %-16s %-9s %s\n", "CLOCK", "NAME", "STATE", "RATE")
	for _, row := range clocks {
		if row.Error != "" {
			fmt.Printf("%-6d %-16s ", row.Clock, row.Name)
			red.Printf("%s\n", row.Error)
			continue
		}
		fmt.Printf("%-6d %-16s ", row.Clock, row.Name)
		if row.Enabled {
			green.Printf("%-9s", "enabled")
		} else {
			yellow.Printf("%-9s", "disabled")
		}
		fmt.Printf(" %s\n", formatRate(row.Rate))
	}
	return nil
}
