package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"sigs.k8s.io/yaml"
)

// Result types matching the gateway API schemas.

// BindingsResult is the response of GET /api/v1/bindings.
type BindingsResult struct {
	View  string        `json:"view"`
	Items []BindingInfo `json:"items"`
}

// BindingInfo is one binding view entry.
type BindingInfo struct {
	Key          string          `json:"key"`
	Kind         string          `json:"kind"`
	ProviderType string          `json:"providerType"`
	Binding      json.RawMessage `json:"binding"`
}

// StatusResult is the response of GET /api/v1/status.
type StatusResult struct {
	Namespace string `json:"namespace"`
	Counts    struct {
		SecretBindings      int `json:"secretBindings"`
		Secrets             int `json:"secrets"`
		CredentialsBindings int `json:"credentialsBindings"`
		VirtualBindings     int `json:"virtualBindings"`
		WorkloadIdentities  int `json:"workloadIdentities"`
		Quotas              int `json:"quotas"`
	} `json:"counts"`
	UpSince string `json:"upSince"`
}

func printBindings(result BindingsResult) error {
	switch outputFmt {
	case "json":
		return printJSON(result)
	case "yaml":
		return printYAML(result)
	default:
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tKIND\tPROVIDER")
		for _, item := range result.Items {
			fmt.Fprintf(w, "%s\t%s\t%s\n", item.Key, item.Kind, item.ProviderType)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\n%d binding(s) in view %q\n", len(result.Items), result.View)
		return nil
	}
}

func printStatus(result StatusResult) error {
	switch outputFmt {
	case "json":
		return printJSON(result)
	case "yaml":
		return printYAML(result)
	default:
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Namespace:\t%s\n", result.Namespace)
		fmt.Fprintf(w, "Up since:\t%s\n", result.UpSince)
		fmt.Fprintf(w, "Secret bindings:\t%d\n", result.Counts.SecretBindings)
		fmt.Fprintf(w, "Secrets:\t%d\n", result.Counts.Secrets)
		fmt.Fprintf(w, "Credentials bindings:\t%d\n", result.Counts.CredentialsBindings)
		fmt.Fprintf(w, "Virtual bindings:\t%d\n", result.Counts.VirtualBindings)
		fmt.Fprintf(w, "Workload identities:\t%d\n", result.Counts.WorkloadIdentities)
		fmt.Fprintf(w, "Quotas:\t%d\n", result.Counts.Quotas)
		return w.Flush()
	}
}

// printRaw renders an arbitrary JSON document in the selected format.
func printRaw(obj json.RawMessage) error {
	switch outputFmt {
	case "yaml":
		data, err := yaml.JSONToYAML(obj)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	default:
		var buf interface{}
		if err := json.Unmarshal(obj, &buf); err != nil {
			return err
		}
		return printJSON(buf)
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printYAML(v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}
