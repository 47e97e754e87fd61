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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	tc := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:   "Defaults",
			mutate: func(c *Config) {},
		},
		{
			name:   "LoggingDisabled",
			mutate: func(c *Config) { c.Global.LogLevel = "" },
		},
		{
			name:    "BadLogLevel",
			mutate:  func(c *Config) { c.Global.LogLevel = "verbose" },
			wantErr: true,
		},
		{
			name:    "BadLogFormat",
			mutate:  func(c *Config) { c.Global.LogFormat = "xml" },
			wantErr: true,
		},
		{
			name:    "NoDirectories",
			mutate:  func(c *Config) { c.Discovery.URLs = nil },
			wantErr: true,
		},
		{
			name:    "NonHTTPDirectory",
			mutate:  func(c *Config) { c.Discovery.URLs = []string{"ftp://peers.example.org/"} },
			wantErr: true,
		},
		{
			name:   "SocksProxy",
			mutate: func(c *Config) { c.Discovery.Proxy = "socks5h://127.0.0.1:9050" },
		},
		{
			name:    "UnsupportedProxy",
			mutate:  func(c *Config) { c.Discovery.Proxy = "gopher://127.0.0.1:70" },
			wantErr: true,
		},
		{
			name:    "NoDiscoveryTimeout",
			mutate:  func(c *Config) { c.Discovery.Timeout = 0 },
			wantErr: true,
		},
		{
			name:    "NegativeCacheTTL",
			mutate:  func(c *Config) { c.Discovery.CacheTTL = -time.Second },
			wantErr: true,
		},
		{
			name:   "NativeBackend",
			mutate: func(c *Config) { c.Probe.Backend = ProbeBackendNative },
		},
		{
			name:    "UnknownBackend",
			mutate:  func(c *Config) { c.Probe.Backend = "tcp" },
			wantErr: true,
		},
		{
			name:    "NoPingCommand",
			mutate:  func(c *Config) { c.Probe.Command = "" },
			wantErr: true,
		},
		{
			name:    "ZeroCount",
			mutate:  func(c *Config) { c.Probe.Count = 0 },
			wantErr: true,
		},
		{
			name:    "ZeroWorkers",
			mutate:  func(c *Config) { c.Scheduler.Workers = 0 },
			wantErr: true,
		},
		{
			name:    "TooManyWorkers",
			mutate:  func(c *Config) { c.Scheduler.Workers = 1000 },
			wantErr: true,
		},
		{
			name:    "NoEscalator",
			mutate:  func(c *Config) { c.Merge.Escalator = "" },
			wantErr: true,
		},
		{
			name: "NoEscalationNeeded",
			mutate: func(c *Config) {
				c.Merge.Escalator = ""
				c.Merge.NoEscalation = true
			},
		},
		{
			name:    "ZeroMaxPeers",
			mutate:  func(c *Config) { c.Merge.MaxPeers = 0 },
			wantErr: true,
		},
		{
			name:    "NoSuccessMarker",
			mutate:  func(c *Config) { c.Merge.SuccessMarker = "" },
			wantErr: true,
		},
	}
	for _, tt := range tc {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := NewDefaultConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			} else if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadFromFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	tc := []struct {
		name string
		file string
		data string
	}{
		{
			name: "YAML",
			file: "config.yaml",
			data: `
global:
  log-level: debug
discovery:
  urls:
    - https://peers.example.org/
  cache-ttl: 1m
probe:
  backend: native
  count: 5
scheduler:
  workers: 8
merge:
  no-escalation: true
  max-peers: 4
`,
		},
		{
			name: "TOML",
			file: "config.toml",
			data: `
[global]
log-level = "debug"

[discovery]
urls = ["https://peers.example.org/"]
cache-ttl = "1m"

[probe]
backend = "native"
count = 5

[scheduler]
workers = 8

[merge]
no-escalation = true
max-peers = 4
`,
		},
		{
			name: "JSON",
			file: "config.json",
			data: `{
  "global": {"log-level": "debug"},
  "discovery": {"urls": ["https://peers.example.org/"], "cache-ttl": "1m"},
  "probe": {"backend": "native", "count": 5},
  "scheduler": {"workers": 8},
  "merge": {"no-escalation": true, "max-peers": 4}
}`,
		},
	}
	for _, tt := range tc {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, []byte(tt.data), 0o600); err != nil {
				t.Fatal(err)
			}
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			c := NewDefaultConfig().BindFlags("", fs)
			if err := fs.Parse([]string{"--scheduler.workers=3"}); err != nil {
				t.Fatal(err)
			}
			if err := c.LoadFrom(fs, []string{path}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := NewDefaultConfig()
			want.Global.LogLevel = "debug"
			want.Discovery.URLs = []string{"https://peers.example.org/"}
			want.Discovery.CacheTTL = time.Minute
			want.Probe.Backend = ProbeBackendNative
			want.Probe.Count = 5
			// Flags win over files.
			want.Scheduler.Workers = 3
			want.Merge.NoEscalation = true
			want.Merge.MaxPeers = 4
			if diff := cmp.Diff(want, c); diff != "" {
				t.Errorf("unexpected config (-want +got):\n%s", diff)
			}
			if err := c.Validate(); err != nil {
				t.Errorf("loaded config should be valid: %v", err)
			}
		})
	}
}

func TestLoadFromUnsupportedFile(t *testing.T) {
	t.Parallel()
	c := NewDefaultConfig()
	if err := c.LoadFrom(nil, []string{"config.ini"}); err == nil {
		t.Error("expected error for unsupported file type")
	}
	if err := c.LoadFrom(nil, []string{filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MESHPEERS_PROBE_TIMEOUT", "2s")
	t.Setenv("MESHPEERS_DISCOVERY_CACHE_TTL", "30s")
	t.Setenv("MESHPEERS_MERGE_CONFIG_PATH", "/etc/mesh.conf")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c := NewDefaultConfig().BindFlags("", fs)
	if err := fs.Parse([]string{"--probe.timeout=3s"}); err != nil {
		t.Fatal(err)
	}
	if err := c.LoadFrom(fs, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Probe.Timeout != 3*time.Second {
		t.Errorf("expected flag to override environment, got %s", c.Probe.Timeout)
	}
	if c.Discovery.CacheTTL != 30*time.Second {
		t.Errorf("expected cache ttl from environment, got %s", c.Discovery.CacheTTL)
	}
	if c.Merge.ConfigPath != "/etc/mesh.conf" {
		t.Errorf("expected config path from environment, got %q", c.Merge.ConfigPath)
	}
}

func TestEnvKey(t *testing.T) {
	t.Parallel()
	tc := map[string]string{
		"MESHPEERS_PROBE_TIMEOUT":       "probe.timeout",
		"MESHPEERS_DISCOVERY_CACHE_TTL": "discovery.cache-ttl",
		"MESHPEERS_GLOBAL_LOG_LEVEL":    "global.log-level",
		"MESHPEERS_CONFIG":              "config",
	}
	for in, want := range tc {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}
