// Package config loads the catalog CLI's configuration, generalized from
// the teacher's own internal/config (same koanf + toml loading, same
// layered-file precedence) to the catalog engine's own settings: library
// roots, gatekeeper timeouts, and rescan defaults rather than
// player/UI preferences.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const appName = "waves-catalog"

// Library is one configured content root, mapped 1:1 onto a catalog
// collection (identified by Title, found-or-created on startup).
type Library struct {
	Title    string `koanf:"title"`
	RootPath string `koanf:"root_path"`
}

// Gatekeeper holds the acquire timeouts passed to gatekeeper.Config.
type Gatekeeper struct {
	AcquireReadTimeoutMs  int `koanf:"acquire_read_timeout_ms"`
	AcquireWriteTimeoutMs int `koanf:"acquire_write_timeout_ms"`
}

// Rescan holds the default Params flags a plain "rescan" invocation
// applies when the command line doesn't override them.
type Rescan struct {
	PurgeUntrackedMediaSources bool `koanf:"purge_untracked_media_sources"`
	PurgeOrphanedMediaSources  bool `koanf:"purge_orphaned_media_sources"`
	FindUntrackedFiles         bool `koanf:"find_untracked_files"`
	FindUnsynchronizedTracks   bool `koanf:"find_unsynchronized_tracks"`
}

// Config is the catalog CLI's full configuration.
type Config struct {
	DatabasePath string     `koanf:"database_path"` // empty means the xdg default
	Libraries    []Library  `koanf:"libraries"`
	Gatekeeper   Gatekeeper `koanf:"gatekeeper"`
	Rescan       Rescan     `koanf:"rescan"`
}

// AcquireReadTimeout and AcquireWriteTimeout convert the millisecond
// fields into time.Duration, 0 meaning no timeout (gatekeeper.Config's
// own zero-value convention).
func (g Gatekeeper) AcquireReadTimeout() time.Duration {
	return time.Duration(g.AcquireReadTimeoutMs) * time.Millisecond
}

func (g Gatekeeper) AcquireWriteTimeout() time.Duration {
	return time.Duration(g.AcquireWriteTimeoutMs) * time.Millisecond
}

// Load reads ~/.config/waves-catalog/config.toml then ./config.toml
// (last wins, same layering as the teacher's internal/config.Load) and
// applies defaults for anything left unset.
func Load() (*Config, error) {
	k := koanf.New(".")

	for _, path := range configPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{
		Gatekeeper: Gatekeeper{AcquireReadTimeoutMs: 5000, AcquireWriteTimeoutMs: 30000},
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if cfg.DatabasePath == "" {
		dbPath, err := xdg.DataFile(filepath.Join(appName, "catalog.db"))
		if err != nil {
			return nil, err
		}
		cfg.DatabasePath = dbPath
	} else {
		cfg.DatabasePath = expandPath(cfg.DatabasePath)
	}

	for i, lib := range cfg.Libraries {
		cfg.Libraries[i].RootPath = expandPath(lib.RootPath)
	}

	return cfg, nil
}

func configPaths() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", appName, "config.toml"))
	}
	paths = append(paths, "config.toml")
	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
