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

// Package config contains configuration options and parsing for the meshpeers CLI.
package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Config are the configuration options for discovering, testing and applying peers.
type Config struct {
	// Global are options that apply to every command.
	Global GlobalOptions `koanf:"global,omitempty"`
	// Discovery are the peer directory options.
	Discovery DiscoveryOptions `koanf:"discovery,omitempty"`
	// Probe are the reachability probe options.
	Probe ProbeOptions `koanf:"probe,omitempty"`
	// Scheduler are the worker pool options.
	Scheduler SchedulerOptions `koanf:"scheduler,omitempty"`
	// Merge are the options for writing peers to the daemon configuration.
	Merge MergeOptions `koanf:"merge,omitempty"`
}

// NewDefaultConfig returns a new config with the default options.
func NewDefaultConfig() *Config {
	return &Config{
		Global:    NewGlobalOptions(),
		Discovery: NewDiscoveryOptions(),
		Probe:     NewProbeOptions(),
		Scheduler: NewSchedulerOptions(),
		Merge:     NewMergeOptions(),
	}
}

// BindFlags binds the flags. The options are returned for convenience.
func (o *Config) BindFlags(prefix string, fs *pflag.FlagSet) *Config {
	o.Discovery.BindFlags(prefix, fs)
	o.Probe.BindFlags(prefix, fs)
	o.Scheduler.BindFlags(prefix, fs)
	o.Merge.BindFlags(prefix, fs)
	if prefix == "" {
		o.Global.BindFlags(fs)
	}
	return o
}

// Validate validates the configuration.
func (o *Config) Validate() error {
	if err := o.Global.Validate(); err != nil {
		return fmt.Errorf("invalid global options: %w", err)
	}
	if err := o.Discovery.Validate(); err != nil {
		return fmt.Errorf("invalid discovery options: %w", err)
	}
	if err := o.Probe.Validate(); err != nil {
		return fmt.Errorf("invalid probe options: %w", err)
	}
	if err := o.Scheduler.Validate(); err != nil {
		return fmt.Errorf("invalid scheduler options: %w", err)
	}
	if err := o.Merge.Validate(); err != nil {
		return fmt.Errorf("invalid merge options: %w", err)
	}
	return nil
}
