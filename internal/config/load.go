// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/labyrinth-game/labyrinth/internal/xdg"
)

// EnvPrefix is the prefix of environment variables read by Load.
// Nested keys are separated by a double underscore, for example
// LABYRINTH_AUTH__JWT_SECRET sets auth.jwt_secret.
const EnvPrefix = "LABYRINTH_"

// listKeys are keys whose environment values are comma-separated lists.
var listKeys = map[string]bool{
	"http.allowed_origins": true,
	"webauthn.rp_origins":  true,
}

// FlagKeys maps command-line flag names to config keys.
var FlagKeys = map[string]string{
	"http-addr":    "http.addr",
	"metrics-addr": "metrics.addr",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"store":        "store.backend",
	"database-url": "store.postgres_url",
	"auto-migrate": "store.auto_migrate",
}

// LoadOptions controls where Load reads from.
type LoadOptions struct {
	// File is an explicit YAML file. When empty, the XDG config file is used
	// if it exists.
	File string
	// Flags are applied last. Only flags named in FlagKeys and set by the
	// user are read.
	Flags *pflag.FlagSet
}

// Load builds the configuration from defaults, file, environment and flags.
// The result is not validated; call Validate before use.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	path := opts.File
	if path == "" && xdg.FileExists(xdg.ConfigFile()) {
		path = xdg.ConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_INVALID").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_ENV_INVALID").Wrap(err)
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := FlagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	return cfg, nil
}

func envKey(name, value string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	if listKeys[key] {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return key, parts
	}
	return key, value
}
