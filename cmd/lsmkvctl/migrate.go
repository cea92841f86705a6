package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lsmkv/lsmkv/pkg/engine"
	"github.com/lsmkv/lsmkv/pkg/metadata"
)

// identityAdapter satisfies engine.MigrationAdapter without transforming
// the stored value. It exists so the CLI can bump a namespace's schema
// version without requiring a compiled-in adapter; a host application
// with real schema changes to apply should call engine.Migrate directly
// with its own MigrationAdapter instead.
type identityAdapter struct{}

func (identityAdapter) Up(meta metadata.Record, value any) (metadata.Record, any, error) {
	return meta, value, nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate <target-version>",
	Short: "Bump every item in the namespace to <target-version>",
	Long: `migrate rewrites every item whose stored schema version differs
from <target-version>. Without a compiled-in MigrationAdapter this only
advances the version stamp; it does not transform stored values. Host
applications that need real schema transformations should call
engine.Migrate directly with their own adapter.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var target int
		if _, err := fmt.Sscanf(args[0], "%d", &target); err != nil {
			return fmt.Errorf("lsmkvctl: target-version must be an integer: %w", err)
		}

		e, closer, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer closer()

		if err := e.Migrate(target, identityAdapter{}); err != nil {
			return err
		}
		fmt.Printf("migrated namespace to schema version %d\n", target)
		return nil
	},
}

var _ engine.MigrationAdapter = identityAdapter{}
