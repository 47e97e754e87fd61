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
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-ping/ping"

	"github.com/webmeshproj/meshpeers/pkg/context"
	"github.com/webmeshproj/meshpeers/pkg/peers"
)

// NativeOptions are options for probing with in-process ICMP.
type NativeOptions struct {
	// Count is the number of echo requests to send.
	Count int
	// Interval is the wait between echo requests.
	Interval time.Duration
	// Timeout is the ceiling on the whole probe.
	Timeout time.Duration
	// Privileged uses raw sockets instead of unprivileged datagram sockets.
	// It is implied when running as root.
	Privileged bool
}

// NewNativeOptions returns the default native probe options.
func NewNativeOptions() NativeOptions {
	return NativeOptions{
		Count:    3,
		Interval: 500 * time.Millisecond,
		Timeout:  5 * time.Second,
	}
}

// NativeProber probes candidates with ICMP echo requests sent from this
// process, without spawning a ping binary.
type NativeProber struct {
	opts NativeOptions
}

// NewNativeProber returns a new native prober.
func NewNativeProber(opts NativeOptions) *NativeProber {
	return &NativeProber{opts: opts}
}

// Probe implements Prober.
func (p *NativeProber) Probe(ctx context.Context, c peers.Candidate) Result {
	start := time.Now()
	log := context.LoggerFrom(ctx).With(slog.String("peer", c.URI))
	if ctx.Err() != nil {
		return Cancelled(c, 0)
	}
	pinger, err := p.newPinger(c.Host())
	if err != nil {
		log.Debug("Cannot create pinger", slog.String("error", err.Error()))
		return Unreachable(c, OutcomeUnreachable, time.Since(start))
	}
	done := make(chan error, 1)
	go func() { done <- pinger.Run() }()
	select {
	case <-ctx.Done():
		pinger.Stop()
		<-done
		log.Debug("Probe cancelled")
		return Cancelled(c, time.Since(start))
	case err = <-done:
	}
	if err != nil {
		log.Debug("Pinger failed", slog.String("error", err.Error()))
		return Unreachable(c, OutcomeUnreachable, time.Since(start))
	}
	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		outcome := OutcomeUnreachable
		if time.Since(start) >= p.opts.Timeout {
			outcome = OutcomeTimedOut
		}
		return Unreachable(c, outcome, time.Since(start))
	}
	res := Reachable(c, float64(stats.AvgRtt)/float64(time.Millisecond), time.Since(start))
	log.Debug("Measured latency", slog.Int("latency_ms", res.Candidate.Latency))
	return res
}

func (p *NativeProber) newPinger(host string) (*ping.Pinger, error) {
	if host == "" {
		return nil, fmt.Errorf("no host in peer URI")
	}
	pinger, err := ping.NewPinger(host)
	if err != nil {
		return nil, fmt.Errorf("create pinger: %w", err)
	}
	pinger.Count = p.opts.Count
	pinger.Interval = p.opts.Interval
	pinger.Timeout = p.opts.Timeout
	if p.opts.Privileged || os.Geteuid() == 0 {
		pinger.SetPrivileged(true)
	}
	pinger.SetLogger(ping.NoopLogger{})
	return pinger, nil
}
