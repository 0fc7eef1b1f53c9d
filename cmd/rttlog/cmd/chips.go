package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/OpenTraceLab/OpenTraceRTT/pkg/probe"
	"github.com/spf13/cobra"
)

var chipsJSON bool

// ChipInfo is the JSON form of a known target.
type ChipInfo struct {
	Name   string       `json:"name"`
	Family string       `json:"family"`
	Core   string       `json:"core"`
	RAM    []RegionInfo `json:"ram"`
}

// RegionInfo is one RAM region scanned for the control block.
type RegionInfo struct {
	Name  string `json:"name"`
	Start string `json:"start"`
	Size  uint32 `json:"size"`
}

var chipsCmd = &cobra.Command{
	Use:   "chips [filter]",
	Short: "List supported chips and the RAM scanned for RTT",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runChips,
}

func init() {
	chipsCmd.Flags().BoolVar(&chipsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(chipsCmd)
}

func runChips(cmd *cobra.Command, args []string) error {
	filter := ""
	if len(args) == 1 {
		filter = strings.ToLower(args[0])
	}

	var chips []ChipInfo
	for _, t := range probe.Targets() {
		if filter != "" && !strings.Contains(strings.ToLower(t.Name), filter) &&
			!strings.Contains(strings.ToLower(t.Family), filter) {
			continue
		}
		info := ChipInfo{Name: t.Name, Family: t.Family, Core: t.Core}
		for _, r := range t.RAM() {
			info.RAM = append(info.RAM, RegionInfo{Name: r.Name, Start: fmt.Sprintf("0x%08X", r.Start), Size: r.Size})
		}
		chips = append(chips, info)
	}

	out := cmd.OutOrStdout()
	if chipsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(chips)
	}

	if len(chips) == 0 {
		fmt.Fprintln(out, "No matching chips.")
		return nil
	}
	for _, c := range chips {
		fmt.Fprintf(out, "%-16s %-8s %-11s", c.Name, c.Family, c.Core)
		for _, r := range c.RAM {
			fmt.Fprintf(out, " %s@%s+%dK", r.Name, r.Start, r.Size/1024)
		}
		fmt.Fprintln(out)
	}
	return nil
}
