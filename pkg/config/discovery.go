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
	"net/url"
	"time"

	"github.com/spf13/pflag"

	"github.com/webmeshproj/meshpeers/pkg/discovery"
	"github.com/webmeshproj/meshpeers/pkg/metrics"
	"github.com/webmeshproj/meshpeers/pkg/version"
)

// DiscoveryOptions are options for fetching candidates from peer directories.
type DiscoveryOptions struct {
	// URLs are the peer directories to query. They are merged in order.
	URLs []string `koanf:"urls,omitempty"`
	// Timeout bounds each directory request.
	Timeout time.Duration `koanf:"timeout,omitempty"`
	// Proxy is an optional socks5, socks5h, http or https proxy URL.
	Proxy string `koanf:"proxy,omitempty"`
	// CacheTTL keeps fetched directories for the given duration.
	CacheTTL time.Duration `koanf:"cache-ttl,omitempty"`
	// MaxBodySize caps the bytes read from a directory.
	MaxBodySize int64 `koanf:"max-body-size,omitempty"`
}

// NewDiscoveryOptions returns the default discovery options.
func NewDiscoveryOptions() DiscoveryOptions {
	defaults := discovery.NewOptions()
	return DiscoveryOptions{
		URLs:        []string{defaults.URL},
		Timeout:     defaults.Timeout,
		MaxBodySize: defaults.MaxBodySize,
	}
}

// BindFlags binds the flags for the discovery options.
func (o *DiscoveryOptions) BindFlags(prefix string, fs *pflag.FlagSet) {
	fs.StringSliceVar(&o.URLs, prefix+"discovery.urls", o.URLs, "Peer directories to fetch candidates from.")
	fs.DurationVar(&o.Timeout, prefix+"discovery.timeout", o.Timeout, "Timeout for each directory request.")
	fs.StringVar(&o.Proxy, prefix+"discovery.proxy", o.Proxy, "Proxy URL for directory requests (socks5, socks5h, http, https).")
	fs.DurationVar(&o.CacheTTL, prefix+"discovery.cache-ttl", o.CacheTTL, "Reuse fetched directories for this long. Zero disables caching.")
	fs.Int64Var(&o.MaxBodySize, prefix+"discovery.max-body-size", o.MaxBodySize, "Maximum number of bytes read from a directory.")
}

// Validate validates the discovery options.
func (o *DiscoveryOptions) Validate() error {
	if o == nil {
		return nil
	}
	if len(o.URLs) == 0 {
		return fmt.Errorf("at least one directory URL is required")
	}
	for _, raw := range o.URLs {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid directory URL %q: %w", raw, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("directory URL %q must be http or https", raw)
		}
		if u.Host == "" {
			return fmt.Errorf("directory URL %q has no host", raw)
		}
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than zero")
	}
	if o.CacheTTL < 0 {
		return fmt.Errorf("cache ttl must not be negative")
	}
	if o.MaxBodySize <= 0 {
		return fmt.Errorf("max body size must be greater than zero")
	}
	return discovery.ValidateProxy(o.Proxy)
}

// NewDiscoverer returns a discoverer for the configured directories.
func (o *DiscoveryOptions) NewDiscoverer(m *metrics.Metrics) (discovery.Discoverer, error) {
	return discovery.New(discovery.Options{
		Timeout:     o.Timeout,
		Proxy:       o.Proxy,
		CacheTTL:    o.CacheTTL,
		MaxBodySize: o.MaxBodySize,
		UserAgent:   version.GetBuildInfo().UserAgent(),
	}, o.URLs, m)
}
