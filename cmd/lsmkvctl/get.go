package main

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Read a key and print its decoded value as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, closer, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer closer()

		value, err := e.Get(args[0], nil)
		if err != nil {
			return err
		}
		if value == nil {
			fmt.Println("(not found)")
			return nil
		}
		out, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}
