// Package config loads per-repository configuration from a YAML file
// using gopkg.in/yaml.v3 with `yaml:"field,omitempty"` tags, so an
// absent key falls through to its documented default.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RepositoryConfig holds the per-repository tunables.
type RepositoryConfig struct {
	// MaxCacheWeight bounds the result cache (C9) by total weight.
	MaxCacheWeight int64 `yaml:"max_cache_weight,omitempty"`
	// CommitIDRebuildThreshold is unused directly (rebuild is triggered
	// by a length mismatch, not a counter) but is kept configurable for
	// operators who want periodic proactive rebuilds.
	CommitIDRebuildThreshold int `yaml:"commit_id_rebuild_threshold,omitempty"`
	// WatchMapCapacity bounds the number of distinct patterns the watch
	// subsystem (C10) tracks.
	WatchMapCapacity int `yaml:"watch_map_capacity,omitempty"`
	// MaxEntriesPerFind caps find() result size; default 4096.
	MaxEntriesPerFind int `yaml:"max_entries_per_find,omitempty"`
	// MaxCommitsPerHistory caps history() result size; default 8192.
	MaxCommitsPerHistory int `yaml:"max_commits_per_history,omitempty"`
	// RollingCommitThreshold is the commit count (C11) that triggers
	// creation of a shadowing secondary store.
	RollingCommitThreshold int `yaml:"rolling_commit_threshold,omitempty"`
	// ReadOnly puts the repository in read-only mode; writes fail with
	// dogmaerr.ReadOnly.
	ReadOnly bool `yaml:"read_only,omitempty"`
	// WorkerCount bounds the façade's dispatch pool. Zero means the
	// façade picks a default based on GOMAXPROCS.
	WorkerCount int `yaml:"worker_count,omitempty"`
	// OperationTimeout is the default deadline applied to operations
	// that don't carry their own context deadline.
	OperationTimeout time.Duration `yaml:"operation_timeout,omitempty"`
}

// Defaults returns a RepositoryConfig with every field set to its
// documented default.
func Defaults() RepositoryConfig {
	return RepositoryConfig{
		MaxCacheWeight:           1 << 26, // 67,108,864 units of entry weight
		CommitIDRebuildThreshold: 10000,
		WatchMapCapacity:         1024,
		MaxEntriesPerFind:        4096,
		MaxCommitsPerHistory:     8192,
		RollingCommitThreshold:   10000,
		ReadOnly:                 false,
		WorkerCount:              0,
		OperationTimeout:         30 * time.Second,
	}
}

// Load reads a RepositoryConfig from path, filling any unset field with
// its default. A missing file is not an error: it yields Defaults().
func Load(path string) (RepositoryConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *RepositoryConfig) {
	d := Defaults()
	if cfg.MaxCacheWeight == 0 {
		cfg.MaxCacheWeight = d.MaxCacheWeight
	}
	if cfg.WatchMapCapacity == 0 {
		cfg.WatchMapCapacity = d.WatchMapCapacity
	}
	if cfg.MaxEntriesPerFind == 0 {
		cfg.MaxEntriesPerFind = d.MaxEntriesPerFind
	}
	if cfg.MaxCommitsPerHistory == 0 {
		cfg.MaxCommitsPerHistory = d.MaxCommitsPerHistory
	}
	if cfg.RollingCommitThreshold == 0 {
		cfg.RollingCommitThreshold = d.RollingCommitThreshold
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = d.OperationTimeout
	}
}

// Save writes cfg to path as YAML, creating the file if absent.
func Save(path string, cfg RepositoryConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
