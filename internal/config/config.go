// Package config loads this module's own ambient configuration: fstab/
// utab override paths, the fake-mode switch, the default sector size,
// and which built-in hooksets are enabled. It is deliberately separate
// from internal/config/manifest, which handles the C10 mount-request
// batch format.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML document this module reads at startup.
type Config struct {
	// FstabPath names the fstab file. It is loaded but not read by any
	// collaborator in this module (the default fstab source is a no-op).
	FstabPath string `yaml:"fstabPath,omitempty"`
	// UtabPath names the utab record file. It is loaded but not read:
	// nothing in this module writes or locks a utab file.
	UtabPath string `yaml:"utabPath,omitempty"`
	// FakeMode runs the full state machine without issuing the final
	// mount(2)/umount(2) call, mirroring mount(8)'s `-f`.
	FakeMode bool `yaml:"fakeMode,omitempty"`
	// DefaultSectorSize is a sector size in bytes. The partition code does
	// not read it; sector readers fall back to
	// sector.DefaultLogicalSectorSize on their own.
	DefaultSectorSize int `yaml:"defaultSectorSize,omitempty"`
	// Hooksets lists built-in hookset names (mkdir, selinux, subdir); an
	// empty list means "all of them" to HooksetEnabled. The mount
	// subcommand does not consult it and always registers mkdir and
	// subdir.
	Hooksets []string `yaml:"hooksets,omitempty"`
}

// Default returns the zero-config baseline: system fstab/utab paths,
// fake mode off, 512-byte sectors, every built-in hookset enabled.
func Default() Config {
	return Config{
		FstabPath:         "/etc/fstab",
		UtabPath:          "/run/mount/utab",
		DefaultSectorSize: 512,
		Hooksets:          []string{"mkdir", "selinux", "subdir"},
	}
}

// Load reads and parses a YAML config file at path, starting from
// Default() so an omitted field keeps its default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// HooksetEnabled reports whether name is in cfg.Hooksets (or the list
// is empty, meaning everything is enabled).
func (c Config) HooksetEnabled(name string) bool {
	if len(c.Hooksets) == 0 {
		return true
	}
	for _, h := range c.Hooksets {
		if h == name {
			return true
		}
	}
	return false
}
