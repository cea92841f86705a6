package main

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write a JSON snapshot of the namespace to <file>",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		includeIndexes, _ := cmd.Flags().GetBool("include-indexes")

		e, closer, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer closer()

		snapshot, err := e.Export(includeIndexes)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[0], out, 0o600); err != nil {
			return fmt.Errorf("lsmkvctl: write snapshot: %w", err)
		}
		fmt.Printf("exported %d entries to %s\n", len(snapshot.Data), args[0])
		return nil
	},
}

func init() {
	exportCmd.Flags().Bool("include-indexes", false, "Include secondary-index records in the snapshot")
}
