package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var vacuumCmd = &cobra.Command{
	Use:   "vacuum",
	Short: "Run an on-demand sweep of expired items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, closer, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer closer()

		n, err := e.Vacuum()
		if err != nil {
			return err
		}
		fmt.Printf("vacuumed %d item(s)\n", n)
		return nil
	},
}
