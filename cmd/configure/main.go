package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskpilot/taskpilot/cmd/configure/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "taskpilot-configure",
		Short: "Operational tool for the TaskPilot API",
		Long:  "CLI tool for inspecting quotas, the message sanitizer, and model connectivity",
	}

	rootCmd.AddCommand(commands.NewQuotaCmd())
	rootCmd.AddCommand(commands.NewSanitizeCmd())
	rootCmd.AddCommand(commands.NewModelCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
