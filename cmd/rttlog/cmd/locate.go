package cmd

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceRTT/pkg/rtt"
	"github.com/spf13/cobra"
)

var locateCmd = &cobra.Command{
	Use:   "locate <elf>",
	Short: "Print the RTT control block address from a firmware ELF file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		addr, err := rtt.ResolveSymbol(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s 0x%08X\n", rtt.SymbolName, addr)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(locateCmd)
}
