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
	"strings"

	"github.com/spf13/pflag"
)

// GlobalOptions are options that apply to every command.
type GlobalOptions struct {
	// LogLevel is the log level. An empty level disables logging.
	LogLevel string `koanf:"log-level,omitempty"`
	// LogFormat is the log format, text or json.
	LogFormat string `koanf:"log-format,omitempty"`
	// MetricsFile is a path to write metrics to in the Prometheus text
	// format when a command finishes.
	MetricsFile string `koanf:"metrics-file,omitempty"`
}

// NewGlobalOptions returns the default global options.
func NewGlobalOptions() GlobalOptions {
	return GlobalOptions{
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// BindFlags binds the flags for the global options.
func (o *GlobalOptions) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.LogLevel, "global.log-level", o.LogLevel, "Log level (debug, info, warn, error). Empty disables logging.")
	fs.StringVar(&o.LogFormat, "global.log-format", o.LogFormat, "Log format (text, json).")
	fs.StringVar(&o.MetricsFile, "global.metrics-file", o.MetricsFile, "Write metrics in the Prometheus text format to this file on exit.")
}

// Validate validates the global options.
func (o *GlobalOptions) Validate() error {
	switch strings.ToLower(o.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", o.LogLevel)
	}
	switch strings.ToLower(o.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", o.LogFormat)
	}
	return nil
}
