// Package config defines the engine's configuration surface and loads
// it from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lsmkv/lsmkv/pkg/eviction"
)

// Defaults, per spec.md §6.
const (
	DefaultPrefix         = "__lsm__"
	DefaultNamespace      = "default"
	DefaultShardSize      = 131072
	DefaultVacuumInterval = 60 * time.Second
	DefaultEvictionPolicy = eviction.LRU
	DefaultSoftQuota      = 4 * 1024 * 1024
	DefaultHardQuota      = 8 * 1024 * 1024
	DefaultSchemaVersion  = 1
	DefaultLockLease      = 2 * time.Second
	DefaultLockAttempts   = 8
)

// Config is one namespace's engine configuration, per spec.md §6.
type Config struct {
	Namespace        string            `yaml:"namespace"`
	Prefix           string            `yaml:"prefix"`
	Compress         bool              `yaml:"compress"`
	Encrypt          bool              `yaml:"encrypt"`
	DegenerateCipher bool              `yaml:"degenerateCipher"`
	ShardSize        int               `yaml:"shardSize"`
	VacuumInterval   time.Duration     `yaml:"vacuumInterval"`
	EvictionPolicy   eviction.Policy   `yaml:"evictionPolicy"`
	QuotaSoftLimit   int64             `yaml:"quotaSoftLimit"`
	QuotaHardLimit   int64             `yaml:"quotaHardLimit"`
	SchemaVersion    int               `yaml:"schemaVersion"`
	Journaling       bool              `yaml:"journaling"`
	Broadcast        bool              `yaml:"broadcast"`
	Metrics          bool              `yaml:"metrics"`
	Diagnostics      bool              `yaml:"diagnostics"`
	AutoInit         bool              `yaml:"autoInit"`
	LockLease        time.Duration     `yaml:"lockLease"`
	LockAttempts     int               `yaml:"lockAttempts"`
	DataDir          string            `yaml:"dataDir"`
	LogLevel         string            `yaml:"logLevel"`
	Extra            map[string]string `yaml:"extra,omitempty"`
}

// Default returns a Config populated with spec.md §6's defaults.
func Default() Config {
	return Config{
		Namespace:      DefaultNamespace,
		Prefix:         DefaultPrefix,
		Compress:       false,
		Encrypt:        false,
		ShardSize:      DefaultShardSize,
		VacuumInterval: DefaultVacuumInterval,
		EvictionPolicy: DefaultEvictionPolicy,
		QuotaSoftLimit: DefaultSoftQuota,
		QuotaHardLimit: DefaultHardQuota,
		SchemaVersion:  DefaultSchemaVersion,
		Journaling:     true,
		Broadcast:      true,
		Metrics:        true,
		Diagnostics:    false,
		AutoInit:       true,
		LockLease:      DefaultLockLease,
		LockAttempts:   DefaultLockAttempts,
		DataDir:        "./data",
		LogLevel:       "info",
	}
}

// LoadFile reads a YAML config file and overlays it onto Default(). A
// missing file is not an error; the defaults are returned unchanged.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects configuration combinations the engine cannot act on.
func (c Config) Validate() error {
	if c.ShardSize < 1 {
		return fmt.Errorf("config: shardSize must be >= 1, got %d", c.ShardSize)
	}
	if c.QuotaSoftLimit < 0 || c.QuotaHardLimit < 0 {
		return fmt.Errorf("config: quotas must be non-negative")
	}
	if c.QuotaHardLimit > 0 && c.QuotaSoftLimit > c.QuotaHardLimit {
		return fmt.Errorf("config: quotaSoftLimit (%d) must not exceed quotaHardLimit (%d)", c.QuotaSoftLimit, c.QuotaHardLimit)
	}
	if c.EvictionPolicy != eviction.LRU && c.EvictionPolicy != eviction.LFU {
		return fmt.Errorf("config: evictionPolicy must be %q or %q, got %q", eviction.LRU, eviction.LFU, c.EvictionPolicy)
	}
	return nil
}
