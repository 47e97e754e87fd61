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

	"github.com/webmeshproj/meshpeers/pkg/probe"
)

const (
	// ProbeBackendExec probes with an external ping binary.
	ProbeBackendExec = "exec"
	// ProbeBackendNative probes with in-process ICMP.
	ProbeBackendNative = "native"
)

// ProbeOptions are options for testing candidate reachability.
type ProbeOptions struct {
	// Backend is the probe implementation, exec or native.
	Backend string `koanf:"backend,omitempty"`
	// Command is the ping binary used by the exec backend.
	Command string `koanf:"command,omitempty"`
	// Command6 is used for IPv6 hosts by the exec backend when set.
	Command6 string `koanf:"command6,omitempty"`
	// Count is the number of echo requests per probe.
	Count int `koanf:"count,omitempty"`
	// Timeout is the ceiling on a single probe.
	Timeout time.Duration `koanf:"timeout,omitempty"`
	// PollInterval is how often the exec backend checks for cancellation.
	PollInterval time.Duration `koanf:"poll-interval,omitempty"`
	// GracePeriod is how long a terminated ping process has before it is killed.
	GracePeriod time.Duration `koanf:"grace-period,omitempty"`
	// Interval is the wait between echo requests of the native backend.
	Interval time.Duration `koanf:"interval,omitempty"`
	// Privileged makes the native backend use raw sockets.
	Privileged bool `koanf:"privileged,omitempty"`
}

// NewProbeOptions returns the default probe options.
func NewProbeOptions() ProbeOptions {
	execOpts := probe.NewExecOptions()
	nativeOpts := probe.NewNativeOptions()
	return ProbeOptions{
		Backend:      ProbeBackendExec,
		Command:      execOpts.Command,
		Command6:     execOpts.Command6,
		Count:        execOpts.Count,
		Timeout:      execOpts.Timeout,
		PollInterval: execOpts.PollInterval,
		GracePeriod:  execOpts.GracePeriod,
		Interval:     nativeOpts.Interval,
	}
}

// BindFlags binds the flags for the probe options.
func (o *ProbeOptions) BindFlags(prefix string, fs *pflag.FlagSet) {
	fs.StringVar(&o.Backend, prefix+"probe.backend", o.Backend, "Probe backend (exec, native).")
	fs.StringVar(&o.Command, prefix+"probe.command", o.Command, "Ping binary for the exec backend.")
	fs.StringVar(&o.Command6, prefix+"probe.command6", o.Command6, "Ping binary for IPv6 hosts with the exec backend.")
	fs.IntVar(&o.Count, prefix+"probe.count", o.Count, "Number of echo requests per probe.")
	fs.DurationVar(&o.Timeout, prefix+"probe.timeout", o.Timeout, "Timeout for a single probe.")
	fs.DurationVar(&o.PollInterval, prefix+"probe.poll-interval", o.PollInterval, "Cancellation check interval for the exec backend.")
	fs.DurationVar(&o.GracePeriod, prefix+"probe.grace-period", o.GracePeriod, "Time a terminated ping process has before it is killed.")
	fs.DurationVar(&o.Interval, prefix+"probe.interval", o.Interval, "Interval between echo requests for the native backend.")
	fs.BoolVar(&o.Privileged, prefix+"probe.privileged", o.Privileged, "Use raw ICMP sockets with the native backend.")
}

// Validate validates the probe options.
func (o *ProbeOptions) Validate() error {
	if o == nil {
		return nil
	}
	switch o.Backend {
	case ProbeBackendExec:
		if o.Command == "" {
			return fmt.Errorf("command must be set for the exec backend")
		}
		if o.PollInterval <= 0 {
			return fmt.Errorf("poll interval must be greater than zero")
		}
		if o.GracePeriod <= 0 {
			return fmt.Errorf("grace period must be greater than zero")
		}
	case ProbeBackendNative:
		if o.Interval <= 0 {
			return fmt.Errorf("interval must be greater than zero")
		}
	default:
		return fmt.Errorf("unknown probe backend %q", o.Backend)
	}
	if o.Count <= 0 {
		return fmt.Errorf("count must be greater than zero")
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than zero")
	}
	return nil
}

// NewProber returns the configured prober. The registry tracks ping
// processes of the exec backend and is returned for the scheduler. It is nil
// for the native backend.
func (o *ProbeOptions) NewProber() (probe.Prober, *probe.Registry) {
	if o.Backend == ProbeBackendNative {
		return probe.NewNativeProber(probe.NativeOptions{
			Count:      o.Count,
			Interval:   o.Interval,
			Timeout:    o.Timeout,
			Privileged: o.Privileged,
		}), nil
	}
	reg := probe.NewRegistry()
	return probe.NewExecProber(probe.ExecOptions{
		Command:      o.Command,
		Command6:     o.Command6,
		Count:        o.Count,
		Timeout:      o.Timeout,
		PollInterval: o.PollInterval,
		GracePeriod:  o.GracePeriod,
	}, reg), reg
}
