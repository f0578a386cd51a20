package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	rateAgent string
	rateClock uint32
	rateRound string
)

var rateCmd = &cobra.Command{
	Use:   "rate",
	Short: "Read or change a clock rate",
}

var rateGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Read the current rate of a clock",
	RunE:  runRateGet,
}

var rateSetCmd = &cobra.Command{
	Use:   "set <hz>",
	Short: "Request a new rate for a clock",
	Long: `Request a new rate in Hz. The daemon rounds the request onto the
device's supported rates according to --round and reports the rate that
actually took effect.`,
	Args: cobra.ExactArgs(1),
	RunE: runRateSet,
}

func init() {
	for _, cmd := range []*cobra.Command{rateGetCmd, rateSetCmd} {
		cmd.Flags().StringVar(&rateAgent, "agent", "0", "agent name or index")
		cmd.Flags().Uint32Var(&rateClock, "clock", 0, "agent-local clock index")
	}
	rateSetCmd.Flags().StringVar(&rateRound, "round", "down", "rounding mode: down | up | auto")
	rateCmd.AddCommand(rateGetCmd)
	rateCmd.AddCommand(rateSetCmd)
	rootCmd.AddCommand(rateCmd)
}

func runRateGet(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	clocks, err := client.Clocks(context.Background(), rateAgent)
	if err != nil {
		return err
	}
	for _, row := range clocks {
		if row.Clock != rateClock {
			continue
		}
		if row.Error != "" {
			return fmt.Errorf("clock %d: %s", rateClock, row.Error)
		}
		if jsonOut {
			return printJSON(row)
		}
		fmt.Printf("%s: %s (%d Hz)\n", row.Name, formatRate(row.Rate), row.Rate)
		return nil
	}
	return fmt.Errorf("agent %s has no clock %d", rateAgent, rateClock)
}

func runRateSet(cmd *cobra.Command, args []string) error {
	hz, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("rate %q is not a number of Hz: %w", args[0], err)
	}
	client, err := newClient()
	if err != nil {
		return err
	}
	out, err := client.SetRate(context.Background(), rateAgent, rateClock, hz, rateRound)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(out)
	}
	if out.Rate == hz {
		green.Printf("✓ rate set to %s\n", formatRate(out.Rate))
	} else {
		green.Printf("✓ rate set to %s", formatRate(out.Rate))
		yellow.Printf(" (rounded from %s)\n", formatRate(hz))
	}
	return nil
}
