// credctl is a CLI tool for querying a running credcached instance.
//
// Installation:
//
//	go build -o credctl ./cmd/credctl
//	mv credctl /usr/local/bin/
//
// Usage:
//
//	credctl bindings
//	credctl bindings --view dns
//	credctl get secret garden-dev my-secret
//	credctl status
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	outputFmt string
	serverURL string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "credctl",
		Short: "Query a credcached credential cache",
		Long: `credctl is a CLI tool for interacting with credcached.

It reads binding views and point lookups from the gateway HTTP API,
providing table, JSON or YAML output.`,
		Version: version,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8085", "Base URL of the credcached gateway")

	// Add subcommands
	rootCmd.AddCommand(bindingsCmd())
	rootCmd.AddCommand(getCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
