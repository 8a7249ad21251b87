// Package main provides the routergw-cli command-line tool for operating
// a llm-router deployment: validating Config Snapshot bootstrap documents
// and inspecting build/version info.
package main

import (
	"fmt"
	"os"

	"github.com/ferro-labs/llm-router/internal/version"
	"github.com/ferro-labs/llm-router/snapshot"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "routergw-cli",
		Short:         "routergw-cli — llm-router command line tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newValidateCmd(), newVersionCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <snapshot-file>",
		Short: "Validate a Config Snapshot bootstrap document (JSON/YAML)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := args[0]
			snap, err := snapshot.LoadFile(path)
			if err != nil {
				return fmt.Errorf("loading %s: %w", path, err)
			}

			fmt.Println("✓ Config Snapshot is valid")
			fmt.Printf("  Version:   %s\n", snap.Version)
			fmt.Printf("  Providers: %d\n", len(snap.Providers))
			for name, p := range snap.Providers {
				status := "inactive"
				if p.Active {
					status = "active"
				}
				fmt.Printf("    - %-12s %-8s rollout=%d%% models=%d\n", name, status, p.RolloutPercentage, len(p.Models))
			}
			fmt.Printf("  Routing weights: cost=%.2f quality=%.2f latency=%.2f availability=%.2f\n",
				snap.Routing.Weights.Cost, snap.Routing.Weights.Quality, snap.Routing.Weights.Latency, snap.Routing.Weights.Availability)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Printf("routergw-cli %s\n", version.String())
			return nil
		},
	}
}
