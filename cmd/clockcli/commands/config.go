package commands

import (
	"fmt"

	"github.com/danmuck/clockctl/internal/config"
	"github.com/spf13/cobra"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage clockd config files",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a commented clockd config template",
	Long: `Write a commented clockd config template to the given path, or
"clockd.toml" when no path is given. Pass "-" to print the template to
stdout instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "clockd.toml"
	if len(args) == 1 {
		path = args[0]
	}
	if path == "-" {
		fmt.Print(config.Template())
		return nil
	}
	if err := config.WriteTemplate(path, configForce); err != nil {
		return err
	}
	green.Printf("✓ wrote config template to %s\n", path)
	return nil
}
