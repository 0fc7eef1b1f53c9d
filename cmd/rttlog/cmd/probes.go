package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/OpenTraceLab/OpenTraceRTT/pkg/probe"
	"github.com/spf13/cobra"
)

var probesCmd = &cobra.Command{
	Use:   "probes",
	Short: "List attached debug probes",
	Long: `Scan USB for known debug probes (CMSIS-DAP, DAPLink, J-Link, ...) and print the
selector to pass as <probe> for each one found.`,
	Args: cobra.NoArgs,
	RunE: runProbes,
}

func init() {
	rootCmd.AddCommand(probesCmd)
}

func runProbes(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	listings, err := probe.DiscoverProbes(ctx)
	if err != nil {
		return fmt.Errorf("discover probes: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(listings) == 0 {
		fmt.Fprintln(out, "No probes found.")
		return nil
	}

	fmt.Fprintln(out, "Detected debug probes:")
	for _, l := range listings {
		fmt.Fprintf(out, "  - %s [%s] selector %s\n", l.Label(), l.Kind, l.Selector())
	}
	return nil
}
