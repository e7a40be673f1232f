package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show cache status",
		Long: `Show the cached resource counts and the namespace scope.

Examples:
  # Show status
  credctl status

  # Output as JSON
  credctl status -o json`,
		RunE: runStatus,
	}
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	var result StatusResult
	if err := apiGet("/api/v1/status", &result); err != nil {
		return fmt.Errorf("failed to fetch status: %w", err)
	}
	return printStatus(result)
}
