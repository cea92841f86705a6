package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lsmkv/lsmkv/internal/config"
	"github.com/lsmkv/lsmkv/pkg/backingstore"
	"github.com/lsmkv/lsmkv/pkg/engine"
)

// openEngine loads the namespace config named by the root command's
// persistent flags, opens the bbolt-backed store at --data-dir, and
// constructs an Engine over it. The returned closer must be called
// before the process exits to flush and release the database file.
func openEngine(cmd *cobra.Command) (e *engine.Engine, closer func() error, err error) {
	configPath, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	namespace, _ := cmd.Flags().GetString("namespace")
	prefix, _ := cmd.Flags().GetString("prefix")

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("lsmkvctl: load config: %w", err)
	}
	if namespace != "" {
		cfg.Namespace = namespace
	}
	if prefix != "" {
		cfg.Prefix = prefix
	}
	cfg.DataDir = dataDir

	store, err := backingstore.NewBoltStore(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("lsmkvctl: open store: %w", err)
	}

	e, err = engine.New(store, cfg)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("lsmkvctl: construct engine: %w", err)
	}

	return e, func() error {
		if derr := e.Destroy(); derr != nil {
			store.Close()
			return derr
		}
		return store.Close()
	}, nil
}
