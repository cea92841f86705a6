package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm <key>",
	Short: "Remove a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, closer, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer closer()

		removed, err := e.Remove(args[0])
		if err != nil {
			return err
		}
		if removed {
			fmt.Printf("removed %q\n", args[0])
		} else {
			fmt.Printf("%q did not exist\n", args[0])
		}
		return nil
	},
}
