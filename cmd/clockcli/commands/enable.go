package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	enableAgent string
	enableClock uint32
)

var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable a clock as the given agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetEnabled(true)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable a clock as the given agent",
	Long: `Disable drops this agent's reference to the clock. The hardware only
stops once every agent sharing the clock has dropped its reference.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetEnabled(false)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{enableCmd, disableCmd} {
		cmd.Flags().StringVar(&enableAgent, "agent", "0", "agent name or index")
		cmd.Flags().Uint32Var(&enableClock, "clock", 0, "agent-local clock index")
		rootCmd.AddCommand(cmd)
	}
}

func runSetEnabled(enabled bool) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	out, err := client.SetEnabled(context.Background(), enableAgent, enableClock, enabled)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(out)
	}

	verb := "enabled"
	if !enabled {
		verb = "disabled"
	}
	green.Printf("✓ agent %s clock %d %s\n", enableAgent, enableClock, verb)
	return nil
}
