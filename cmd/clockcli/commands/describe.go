package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	describeAgent string
	describeClock uint32
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "List the rates a clock supports",
	RunE:  runDescribe,
}

func init() {
	describeCmd.Flags().StringVar(&describeAgent, "agent", "0", "agent name or index")
	describeCmd.Flags().Uint32Var(&describeClock, "clock", 0, "agent-local clock index")
	rootCmd.AddCommand(describeCmd)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	rates, err := client.DescribeRates(context.Background(), describeAgent, describeClock)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(rates)
	}

	if rates.Format == "range" {
		fmt.Printf("range: %s .. %s in steps of %s\n",
			formatRate(rates.Min), formatRate(rates.Max), formatRate(rates.Step))
		return nil
	}
	cyan.Printf("%-6s %s\n", "INDEX", "RATE")
	for i, hz := range rates.Rates {
		fmt.Printf("%-6d %s\n", i, formatRate(hz))
	}
	return nil
}
