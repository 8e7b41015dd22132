// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tasconfig loads the editor's TOML project configuration: the
// game binary, the type-spec source, slot pool sizing, and default RPC
// settings (SPEC_FULL.md §7a's ambient configuration layer).
package tasconfig

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// GameConfig locates the native library a Config points the editor at.
type GameConfig struct {
	Path         string `toml:"path"`
	UpdateSymbol string `toml:"update_symbol"`
	Sections     []string `toml:"sections"`
}

// SpecConfig locates the type-spec source and its on-disk cache.
type SpecConfig struct {
	Source     string `toml:"source"`
	CacheDir   string `toml:"cache_dir"`
}

// ServerConfig configures the optional timelineserver RPC front end.
type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// Config is the full contents of a project's .toml configuration file.
type Config struct {
	Game     GameConfig    `toml:"game"`
	Spec     SpecConfig    `toml:"spec"`
	Server   ServerConfig  `toml:"server"`
	Capacity int           `toml:"capacity"`
	LogFile  string        `toml:"log_file"`
}

// Default returns a Config with the settings a fresh project starts
// from, before a .toml file overrides them.
func Default() Config {
	return Config{
		Capacity: 32,
		Server:   ServerConfig{Listen: "localhost:6417"},
	}
}

// Load reads and parses the TOML file at path, layering it over
// Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "tasconfig: loading %s", path)
	}
	if cfg.Game.Path == "" {
		return Config{}, errors.Errorf("tasconfig: %s: game.path is required", path)
	}
	return cfg, nil
}

// Save writes cfg to path as TOML, creating or truncating it.
func Save(path string, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "tasconfig: creating %s", path)
	}
	defer f.Close()
	enc := toml.NewEncoder(f)
	return errors.Wrapf(enc.Encode(cfg), "tasconfig: writing %s", path)
}
