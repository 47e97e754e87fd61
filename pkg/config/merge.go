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
	"time"

	"github.com/spf13/pflag"

	"github.com/webmeshproj/meshpeers/pkg/merge"
)

// MergeOptions are options for writing peers to the daemon configuration.
type MergeOptions struct {
	// Helper is an external helper script to use instead of the embedded one.
	Helper string `koanf:"helper,omitempty"`
	// Escalator runs the helper with elevated privileges.
	Escalator string `koanf:"escalator,omitempty"`
	// NoEscalation runs the helper without privilege escalation.
	NoEscalation bool `koanf:"no-escalation,omitempty"`
	// Shell interprets the helper script.
	Shell string `koanf:"shell,omitempty"`
	// ConfigPath is the daemon configuration file. The helper searches the
	// well-known locations when empty.
	ConfigPath string `koanf:"config-path,omitempty"`
	// Timeout is the ceiling on a helper invocation.
	Timeout time.Duration `koanf:"timeout,omitempty"`
	// MaxPeers is the most peers written to the configuration.
	MaxPeers int `koanf:"max-peers,omitempty"`
	// SuccessMarker is the helper output that marks success.
	SuccessMarker string `koanf:"success-marker,omitempty"`
}

// NewMergeOptions returns the default merge options.
func NewMergeOptions() MergeOptions {
	defaults := merge.NewOptions()
	return MergeOptions{
		Escalator:     defaults.Escalator,
		Shell:         defaults.Shell,
		Timeout:       defaults.Timeout,
		MaxPeers:      defaults.MaxPeers,
		SuccessMarker: defaults.SuccessMarker,
	}
}

// BindFlags binds the flags for the merge options.
func (o *MergeOptions) BindFlags(prefix string, fs *pflag.FlagSet) {
	fs.StringVar(&o.Helper, prefix+"merge.helper", o.Helper, "External helper script to use instead of the embedded one.")
	fs.StringVar(&o.Escalator, prefix+"merge.escalator", o.Escalator, "Command used to run the helper with elevated privileges.")
	fs.BoolVar(&o.NoEscalation, prefix+"merge.no-escalation", o.NoEscalation, "Run the helper without privilege escalation.")
	fs.StringVar(&o.Shell, prefix+"merge.shell", o.Shell, "Shell that interprets the helper script.")
	fs.StringVar(&o.ConfigPath, prefix+"merge.config-path", o.ConfigPath, "Daemon configuration file. Well-known locations are searched when empty.")
	fs.DurationVar(&o.Timeout, prefix+"merge.timeout", o.Timeout, "Timeout for the helper.")
	fs.IntVar(&o.MaxPeers, prefix+"merge.max-peers", o.MaxPeers, "Maximum number of peers written to the configuration.")
	fs.StringVar(&o.SuccessMarker, prefix+"merge.success-marker", o.SuccessMarker, "Helper output that marks a successful update.")
}

// Validate validates the merge options.
func (o *MergeOptions) Validate() error {
	if o == nil {
		return nil
	}
	if o.Escalator == "" && !o.NoEscalation {
		return fmt.Errorf("escalator must be set unless no-escalation is enabled")
	}
	if o.Shell == "" {
		return fmt.Errorf("shell must be set")
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than zero")
	}
	if o.MaxPeers <= 0 {
		return fmt.Errorf("max peers must be greater than zero")
	}
	if o.SuccessMarker == "" {
		return fmt.Errorf("success marker must be set")
	}
	return nil
}

// MergerOptions returns the options for a merge.Merger.
func (o *MergeOptions) MergerOptions(verbose bool) merge.Options {
	return merge.Options{
		Helper:        o.Helper,
		Escalator:     o.Escalator,
		NoEscalation:  o.NoEscalation,
		Shell:         o.Shell,
		ConfigPath:    o.ConfigPath,
		Verbose:       verbose,
		Timeout:       o.Timeout,
		SuccessMarker: o.SuccessMarker,
		MaxPeers:      o.MaxPeers,
	}
}
