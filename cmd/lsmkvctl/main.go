package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lsmkv/lsmkv/internal/log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lsmkvctl",
	Short: "lsmkvctl inspects and administers an lsmkv namespace",
	Long: `lsmkvctl is an administrative CLI over the lsmkv engine facade.

It operates on one namespace at a time, opening the same bbolt-backed
BackingStore the embedding application uses.`,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to a namespace config YAML file")
	rootCmd.PersistentFlags().String("data-dir", "./data", "Directory holding the bbolt database file")
	rootCmd.PersistentFlags().String("namespace", "", "Namespace to operate on (overrides config file)")
	rootCmd.PersistentFlags().String("prefix", "", "Key prefix to operate under (overrides config file)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(vacuumCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(migrateCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
