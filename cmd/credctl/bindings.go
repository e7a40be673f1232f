package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func bindingsCmd() *cobra.Command {
	var view string

	cmd := &cobra.Command{
		Use:   "bindings",
		Short: "List credential bindings from the cache",
		Long: `List the bindings in one of the derived views.

Examples:
  # All bindings (explicit and virtual)
  credctl bindings

  # Infrastructure bindings only
  credctl bindings --view infrastructure

  # DNS bindings, as JSON
  credctl bindings --view dns -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBindings(view)
		},
	}

	cmd.Flags().StringVar(&view, "view", "all", "View to list: all, infrastructure, dns, explicit")
	return cmd
}

func runBindings(view string) error {
	var result BindingsResult
	if err := apiGet("/api/v1/bindings?view="+url.QueryEscape(view), &result); err != nil {
		return fmt.Errorf("failed to list bindings: %w", err)
	}
	return printBindings(result)
}
