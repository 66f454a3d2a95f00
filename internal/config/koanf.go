// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where a config file is searched,
// in priority order. The first one found is used.
var DefaultConfigPaths = []string{
	"config.json",
	"/etc/discovery-engine/config.json",
}

// ConfigPathEnvVar overrides the search path entirely when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix namespaces every environment override, e.g.
// DISCOVERY_DATABASE_PATH -> database.path.
const envPrefix = "DISCOVERY_"

// Load builds a Config by layering, in increasing priority:
// defaults, an optional JSON file, then environment variables. Load
// does not resolve relative paths: they are kept as given, so files
// they name are opened relative to the process working directory.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	path := os.Getenv(ConfigPathEnvVar)
	if path == "" {
		for _, candidate := range DefaultConfigPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), json.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %q: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envKeyTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKeyTransform turns DISCOVERY_DATABASE_PATH into database.path,
// matching the dot-delimited koanf key space populated by the JSON
// file and struct defaults.
func envKeyTransform(s string) string {
	trimmed := s[len(envPrefix):]
	out := make([]byte, 0, len(trimmed))
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		switch {
		case c == '_':
			out = append(out, '.')
		case c >= 'A' && c <= 'Z':
			out = append(out, c-'A'+'a')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}
