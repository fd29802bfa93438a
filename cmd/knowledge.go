package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Inspect the known serial numbers",
}

var knowledgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every known serial number",
	RunE: func(cmd *cobra.Command, _ []string) error {
		kb, err := initKnowledge(cmd.Context())
		if err != nil {
			return err
		}
		for _, s := range kb.Serials() {
			fmt.Fprintln(os.Stdout, s)
		}
		return nil
	},
}

var knowledgeCheckCmd = &cobra.Command{
	Use:   "check <serial>",
	Short: "Report whether a serial number is known",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kb, err := initKnowledge(cmd.Context())
		if err != nil {
			return err
		}
		return writeJSON(os.Stdout, map[string]any{
			"serial_number": args[0],
			"known":         kb.IsKnown(args[0]),
		})
	},
}

func init() {
	knowledgeCmd.AddCommand(knowledgeListCmd, knowledgeCheckCmd)
	rootCmd.AddCommand(knowledgeCmd)
}
