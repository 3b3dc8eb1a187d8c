// Actionrank - Persona-Driven Climate Action Recommendations
// Copyright 2026 Verdant Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/verdantlabs/actionrank

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file search when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths is searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/actionrank/config.yaml",
	"/etc/actionrank/config.yml",
}

// envVarPaths maps the environment variables the server documents onto
// koanf config paths. Variables not listed here are ignored so stray
// environment noise cannot leak into the config.
var envVarPaths = map[string]string{
	"http_port":    "server.port",
	"http_host":    "server.host",
	"http_timeout": "server.timeout",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"store_path":             "store.path",
	"store_in_memory":        "store.in_memory",
	"store_event_retention":  "store.event_retention",
	"store_cleanup_interval": "store.cleanup_interval",

	"engine_mmr_lambda":      "engine.diversity.mmr_lambda",
	"engine_default_k":       "engine.limits.default_k",
	"engine_max_k":           "engine.limits.max_k",
	"engine_max_candidates":  "engine.limits.max_candidates",
	"engine_cache_enabled":   "engine.cache.enabled",
	"engine_cache_ttl":       "engine.cache.ttl",
	"engine_cache_max":       "engine.cache.max_entries",
	"engine_meta_delta_mode": "engine.meta_deltas",

	"cors_origins":        "api.cors_origins",
	"rate_limit_requests": "api.rate_limit_reqs",
	"rate_limit_window":   "api.rate_limit_window",
	"disable_rate_limit":  "api.rate_limit_disabled",
}

// commaListPaths are config paths that accept a comma-separated string
// from the environment but unmarshal into a []string.
var commaListPaths = []string{
	"api.cors_origins",
}

// Load builds the effective configuration from three layers, lowest
// precedence first: compiled-in defaults, an optional YAML file found
// via ConfigPathEnvVar or DefaultConfigPaths, then environment
// variables.
func Load() (*Config, error) {
	return loadFrom(findConfigFile())
}

// LoadFile is Load with an explicit config file. The file must exist;
// defaults and env vars still layer around it.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return loadFrom(path)
}

func loadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", mapEnvVar), nil); err != nil {
		return nil, fmt.Errorf("apply environment: %w", err)
	}

	if err := expandCommaLists(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func mapEnvVar(key string) string {
	return envVarPaths[strings.ToLower(key)]
}

// expandCommaLists splits string values at commaListPaths into trimmed
// slices. YAML-sourced values arrive as slices already and pass through.
func expandCommaLists(k *koanf.Koanf) error {
	for _, path := range commaListPaths {
		raw, ok := k.Get(path).(string)
		if !ok || raw == "" {
			continue
		}

		var items []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		if len(items) == 0 {
			continue
		}
		if err := k.Set(path, items); err != nil {
			return fmt.Errorf("expand %s: %w", path, err)
		}
	}
	return nil
}

// WatchConfigFile invokes callback whenever the config file changes on
// disk. Callers reload and swap their config under their own locking.
func WatchConfigFile(path string, callback func()) error {
	return file.Provider(path).Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
