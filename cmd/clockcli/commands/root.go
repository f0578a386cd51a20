// Package commands implements the clockcli command tree. Every command
// talks to the admin endpoint of a running clockd daemon; mutations go
// through the same protocol engine as the platform agents, so the CLI
// is subject to the daemon's clock policy like everyone else.
package commands

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/danmuck/clockctl/internal/adminapi"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	serverAddr string
	authToken  string
	jsonOut    bool
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

var rootCmd = &cobra.Command{
	Use:   "clockcli",
	Short: "Inspect and drive the clocks of a clockd daemon",
	Long: `clockcli talks to the admin endpoint of a running clockd daemon.

Clocks are addressed the way the platform agents see them: an agent
name or index plus the agent-local clock index. Use 'clockcli clocks'
to discover what an agent is allowed to touch.`,
	Version:      "0.1.0",
	SilenceUsage: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:9040", "clockd admin address")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "bearer token for the admin endpoint")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print raw JSON responses")
}

func newClient() (*adminapi.Client, error) {
	return adminapi.NewClient(serverAddr, authToken)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// formatRate renders a rate in the largest unit that keeps the value
// readable. Exact values survive the float conversion at these sizes.
func formatRate(hz uint64) string {
	f := float64(hz)
	switch {
	case hz >= 1_000_000_000:
		return trimFloat(f/1e9) + " GHz"
	case hz >= 1_000_000:
		return trimFloat(f/1e6) + " MHz"
	case hz >= 1_000:
		return trimFloat(f/1e3) + " kHz"
	default:
		return fmt.Sprintf("%d Hz", hz)
	}
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
