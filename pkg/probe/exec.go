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

package probe

import (
	"bytes"
	"errors"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/webmeshproj/meshpeers/pkg/context"
	"github.com/webmeshproj/meshpeers/pkg/peers"
)

// ExecOptions are options for probing with an external ping binary.
type ExecOptions struct {
	// Command is the ping binary.
	Command string
	// Command6 is used instead of Command for IPv6 literals when set.
	Command6 string
	// Count is the number of echo requests to send.
	Count int
	// Timeout is the ceiling on the total wait for the process.
	Timeout time.Duration
	// PollInterval is how often cancellation and the timeout are checked.
	PollInterval time.Duration
	// GracePeriod is how long a terminated process has to exit before it is
	// killed.
	GracePeriod time.Duration
}

// NewExecOptions returns the default options for the current platform.
func NewExecOptions() ExecOptions {
	opts := ExecOptions{
		Command:      "ping",
		Count:        3,
		Timeout:      5 * time.Second,
		PollInterval: 100 * time.Millisecond,
		GracePeriod:  500 * time.Millisecond,
	}
	if runtime.GOOS == "darwin" {
		opts.Command6 = "ping6"
	}
	return opts
}

// ExecProber probes candidates by running an external ping process.
type ExecProber struct {
	opts     ExecOptions
	registry *Registry
}

// NewExecProber returns a prober that registers its processes in reg. A nil
// registry gets a private one.
func NewExecProber(opts ExecOptions, reg *Registry) *ExecProber {
	defaults := NewExecOptions()
	if opts.Command == "" {
		opts.Command = defaults.Command
	}
	if opts.Count <= 0 {
		opts.Count = defaults.Count
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = defaults.GracePeriod
	}
	if reg == nil {
		reg = NewRegistry()
	}
	return &ExecProber{opts: opts, registry: reg}
}

// Registry returns the registry of in-flight processes.
func (p *ExecProber) Registry() *Registry {
	return p.registry
}

// Args returns the command and arguments used to probe host.
func (p *ExecProber) Args(host string) (string, []string) {
	command := p.opts.Command
	if p.opts.Command6 != "" && strings.Contains(host, ":") {
		command = p.opts.Command6
	}
	countFlag := "-c"
	if runtime.GOOS == "windows" {
		countFlag = "-n"
	}
	return command, []string{countFlag, strconv.Itoa(p.opts.Count), host}
}

// Probe implements Prober.
func (p *ExecProber) Probe(ctx context.Context, c peers.Candidate) Result {
	start := time.Now()
	log := context.LoggerFrom(ctx).With(slog.String("peer", c.URI))
	if ctx.Err() != nil {
		return Cancelled(c, 0)
	}
	host := c.Host()
	if host == "" {
		log.Debug("Peer URI has no usable host")
		return Unreachable(c, OutcomeUnreachable, 0)
	}
	command, args := p.Args(host)
	var stdout, stderr bytes.Buffer
	cmd := exec.Command(command, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = p.opts.GracePeriod
	setProcessGroup(cmd)
	log.Debug(command, slog.String("args", strings.Join(args, " ")))
	if err := cmd.Start(); err != nil {
		log.Debug("Failed to start probe", slog.String("error", err.Error()))
		return Unreachable(c, OutcomeUnreachable, time.Since(start))
	}
	p.registry.Add(cmd.Process)
	defer p.registry.Remove(cmd.Process)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			if ctx.Err() != nil {
				// The process was most likely terminated by a cancellation.
				return Cancelled(c, time.Since(start))
			}
			return p.result(log, c, err, stdout.String(), stderr.String(), time.Since(start))
		case <-ticker.C:
			if ctx.Err() != nil {
				log.Debug("Probe cancelled")
				p.stop(cmd, done)
				return Cancelled(c, time.Since(start))
			}
			if time.Since(start) >= p.opts.Timeout {
				log.Debug("Probe timed out", slog.Duration("timeout", p.opts.Timeout))
				p.stop(cmd, done)
				return Unreachable(c, OutcomeTimedOut, time.Since(start))
			}
		}
	}
}

func (p *ExecProber) result(log *slog.Logger, c peers.Candidate, err error, stdout, stderr string, took time.Duration) Result {
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
			log.Debug("Probe process failed", slog.String("error", err.Error()), slog.String("stderr", strings.TrimSpace(stderr)))
			return Unreachable(c, OutcomeUnreachable, took)
		}
		// ping exits 1 when some or all replies were lost.
		log.Debug("Host did not answer every request")
	}
	avg, ok := ParseAverage(stdout)
	if !ok {
		return Unreachable(c, OutcomeUnreachable, took)
	}
	res := Reachable(c, avg, took)
	log.Debug("Measured latency", slog.Int("latency_ms", res.Candidate.Latency))
	return res
}

// stop terminates the process and waits out the grace period before killing it.
func (p *ExecProber) stop(cmd *exec.Cmd, done <-chan error) {
	_ = terminate(cmd.Process)
	select {
	case <-done:
		return
	case <-time.After(p.opts.GracePeriod):
	}
	_ = kill(cmd.Process)
	<-done
}
