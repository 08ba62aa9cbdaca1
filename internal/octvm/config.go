package octvm

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default sizing constants: 4KiB stack and local arena per virtual
// processor and an uncapped allocator, so a Config loaded from disk only
// needs to override what differs from these defaults.
const (
	DefaultStackBytes = 4096
	DefaultLocalBytes = 4096
	DefaultAllocatorCap = 0 // uncapped
)

// Config is the small, named-constants-plus-loadable-struct style the
// teacher's internal/config package uses (deleted along with the rest of
// the source-language frontend; see DESIGN.md), repurposed here for the
// handful of knobs OctaneVM actually exposes: the allocator's byte cap and
// the default per-VP stack/local arena sizes.
type Config struct {
	AllocatorCapBytes int64 `yaml:"allocator_cap_bytes"`
	StackBytes        int   `yaml:"stack_bytes"`
	LocalBytes        int   `yaml:"local_bytes"`
	Trace             bool  `yaml:"trace"`
}

// DefaultConfig returns the spec's own defaults: uncapped allocator, 4KiB
// stack and local arena per virtual processor.
func DefaultConfig() Config {
	return Config{
		AllocatorCapBytes: DefaultAllocatorCap,
		StackBytes:        DefaultStackBytes,
		LocalBytes:        DefaultLocalBytes,
	}
}

// LoadConfig reads and decodes a YAML config file, filling in any zero
// field from DefaultConfig so a partial file (e.g. just "trace: true") is
// valid, mirroring builtins_yaml.go's decode-then-backfill habit.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("octvm: read config %q: %w", path, err)
	}
	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return cfg, fmt.Errorf("octvm: parse config %q: %w", path, err)
	}
	if loaded.AllocatorCapBytes != 0 {
		cfg.AllocatorCapBytes = loaded.AllocatorCapBytes
	}
	if loaded.StackBytes != 0 {
		cfg.StackBytes = loaded.StackBytes
	}
	if loaded.LocalBytes != 0 {
		cfg.LocalBytes = loaded.LocalBytes
	}
	cfg.Trace = loaded.Trace
	return cfg, nil
}
