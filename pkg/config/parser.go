/*
Copyright 2023 Avi Zimmerman <avi.zimmerman@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment variables that override the
// configuration, e.g. MESHPEERS_PROBE_TIMEOUT=2s.
const EnvPrefix = "MESHPEERS_"

// ConfigFileEnv names a configuration file when --config is not given.
const ConfigFileEnv = EnvPrefix + "CONFIG"

// LoadFrom attempts to load this configuration from the given flag set,
// configuration files, and environment variables. If fs is not nil, it
// is assumed the configuration has already been bound to the flag set
// and that the flagset has already been parsed.
// The order of precedence for parsing is:
// 1. Files
// 2. Environment variables
// 3. Flags
func (c *Config) LoadFrom(fs *pflag.FlagSet, confFiles []string) error {
	k := koanf.New(".")
	for _, path := range confFiles {
		parser, err := parserFor(path)
		if err != nil {
			return err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return fmt.Errorf("error loading config file %s: %w", path, err)
		}
	}
	err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
	if err != nil {
		return fmt.Errorf("error loading environment variables: %w", err)
	}
	if fs != nil {
		err = k.Load(posflag.Provider(fs, ".", k), nil)
		if err != nil {
			return fmt.Errorf("error loading flags: %w", err)
		}
	}
	err = k.UnmarshalWithConf("", c, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           c,
			WeaklyTypedInput: true,
			ZeroFields:       true,
		},
	})
	if err != nil {
		return fmt.Errorf("error unmarshaling configuration: %w", err)
	}
	return nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config file type %q", filepath.Ext(path))
	}
}

// envKey maps MESHPEERS_DISCOVERY_CACHE_TTL to discovery.cache-ttl.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, key, ok := strings.Cut(s, "_")
	if !ok {
		return section
	}
	return section + "." + strings.ReplaceAll(key, "_", "-")
}
