package main

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/lsmkv/lsmkv/pkg/engine"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load a JSON snapshot produced by export into the namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		overwrite, _ := cmd.Flags().GetBool("overwrite")

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("lsmkvctl: read snapshot: %w", err)
		}
		var snapshot engine.Snapshot
		if err := json.Unmarshal(raw, &snapshot); err != nil {
			return fmt.Errorf("lsmkvctl: parse snapshot: %w", err)
		}

		e, closer, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer closer()

		if err := e.Import(snapshot, overwrite); err != nil {
			return err
		}
		fmt.Printf("imported %d entries from %s\n", len(snapshot.Data), args[0])
		return nil
	},
}

func init() {
	importCmd.Flags().Bool("overwrite", false, "Overwrite keys that already exist")
}
