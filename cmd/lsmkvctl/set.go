package main

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/lsmkv/lsmkv/pkg/engine"
)

var setCmd = &cobra.Command{
	Use:   "set <key> <json-value>",
	Short: "Write a key, decoding <json-value> as JSON",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")
		compress, _ := cmd.Flags().GetBool("compress")
		encrypt, _ := cmd.Flags().GetBool("encrypt")

		var value any
		if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
			return fmt.Errorf("lsmkvctl: value must be valid JSON: %w", err)
		}

		e, closer, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer closer()

		opts := engine.SetOptions{}
		if ttl > 0 {
			opts.TTL = &ttl
		}
		if cmd.Flags().Changed("compress") {
			opts.Compress = &compress
		}
		if cmd.Flags().Changed("encrypt") {
			opts.Encrypt = &encrypt
		}

		if err := e.Set(args[0], value, opts); err != nil {
			return err
		}
		fmt.Printf("set %q\n", args[0])
		return nil
	},
}

func init() {
	setCmd.Flags().Duration("ttl", 0, "Expire the item after this duration (0 = no expiry)")
	setCmd.Flags().Bool("compress", false, "Force compression on, regardless of namespace default")
	setCmd.Flags().Bool("encrypt", false, "Force encryption on, regardless of namespace default")
}
