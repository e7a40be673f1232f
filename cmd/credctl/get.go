package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func getCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get {secret|workloadidentity|quota} NAMESPACE NAME",
		Short: "Look up a single cached resource",
		Long: `Look up one secret, workload identity or quota by namespace and name.

Examples:
  credctl get secret garden-dev my-credentials
  credctl get workloadidentity garden-dev ci-identity -o yaml
  credctl get quota garden-dev default-quota`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(args[0], args[1], args[2])
		},
	}
	return cmd
}

func runGet(kind, namespace, name string) error {
	var path string
	switch kind {
	case "secret":
		path = "/api/v1/secrets/"
	case "workloadidentity":
		path = "/api/v1/workloadidentities/"
	case "quota":
		path = "/api/v1/quotas/"
	default:
		return fmt.Errorf("unknown resource kind %q (want secret, workloadidentity or quota)", kind)
	}

	var obj json.RawMessage
	if err := apiGet(path+namespace+"/"+name, &obj); err != nil {
		return fmt.Errorf("failed to get %s %s/%s: %w", kind, namespace, name, err)
	}
	return printRaw(obj)
}
