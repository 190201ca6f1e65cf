package dispatch

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Defaults applied when no janus.toml overrides them.
const (
	DefaultMaxProbes    = 10_000
	DefaultHotThreshold = 1_000
)

// Config is the dispatch section of a janus.toml project file.
type Config struct {
	// MaxProbes bounds the ambiguity checker's exhaustive sweep per group.
	MaxProbes int `toml:"max_probes"`

	// HotThreshold is the call count past which the profiler marks a call
	// site hot.
	HotThreshold int `toml:"hot_threshold"`

	// TableStrategy selects the compiled lookup strategy: "linear", "tree",
	// or "compressed".
	TableStrategy string `toml:"table_strategy"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxProbes:     DefaultMaxProbes,
		HotThreshold:  DefaultHotThreshold,
		TableStrategy: StrategyTree.Name(),
	}
}

// Strategy resolves the configured table strategy name.
func (cfg *Config) Strategy() (Strategy, error) {
	return ParseStrategy(cfg.TableStrategy)
}

// LoadConfig loads a janus.toml file, filling unset fields from defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if cfg.MaxProbes <= 0 {
		cfg.MaxProbes = DefaultMaxProbes
	}
	if cfg.HotThreshold <= 0 {
		cfg.HotThreshold = DefaultHotThreshold
	}
	if _, err := cfg.Strategy(); err != nil {
		return nil, errors.Wrapf(err, "in %s", path)
	}
	return cfg, nil
}

// FindConfig searches for a janus.toml starting from dir and walking up to
// parent directories. Returns the path and parsed config, or ("", defaults)
// when no file is found.
func FindConfig(dir string) (string, *Config, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, err
	}
	for {
		path := filepath.Join(dir, "janus.toml")
		if _, err := os.Stat(path); err == nil {
			cfg, err := LoadConfig(path)
			if err != nil {
				return "", nil, err
			}
			return path, cfg, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", DefaultConfig(), nil
		}
		dir = parent
	}
}
