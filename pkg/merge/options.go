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

package merge

import (
	"time"
)

// Options are options for applying peers to the daemon configuration.
type Options struct {
	// Helper is an external helper script to run instead of the embedded one.
	Helper string
	// Escalator runs the helper with elevated privileges.
	Escalator string
	// NoEscalation runs the helper directly with the current privileges.
	NoEscalation bool
	// Shell interprets the helper script.
	Shell string
	// ConfigPath is the daemon configuration to rewrite. When empty the
	// helper searches the well-known locations.
	ConfigPath string
	// Verbose asks the helper to report what it does.
	Verbose bool
	// Timeout is the ceiling on a helper invocation.
	Timeout time.Duration
	// SuccessMarker is the text that marks a successful helper run.
	SuccessMarker string
	// MaxPeers is the most peers written to the configuration.
	MaxPeers int
	// TempDir is where the transfer file and helper are written. The system
	// default is used when empty.
	TempDir string
}

// NewOptions returns the default options.
func NewOptions() Options {
	return Options{
		Escalator:     DefaultEscalator,
		Shell:         DefaultShell,
		Timeout:       DefaultTimeout,
		SuccessMarker: DefaultSuccessMarker,
		MaxPeers:      DefaultMaxPeers,
	}
}
