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

// Package probe measures the reachability and latency of candidate peers.
// Probe failures are reported as data in the Result, never as errors.
package probe

import (
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/webmeshproj/meshpeers/pkg/context"
	"github.com/webmeshproj/meshpeers/pkg/peers"
)

// Outcome is how a probe ended.
type Outcome int

const (
	// OutcomeReachable means the host answered and a latency was measured.
	OutcomeReachable Outcome = iota
	// OutcomeUnreachable means the probe ran but produced no measurement.
	OutcomeUnreachable
	// OutcomeTimedOut means the probe hit its time ceiling.
	OutcomeTimedOut
	// OutcomeCancelled means the batch was cancelled before a verdict.
	OutcomeCancelled
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomeReachable:
		return "reachable"
	case OutcomeUnreachable:
		return "unreachable"
	case OutcomeTimedOut:
		return "timed-out"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result is the result of probing one candidate.
type Result struct {
	// Candidate is the probed candidate carrying its new verdict.
	Candidate peers.Candidate
	// Outcome is how the probe ended.
	Outcome Outcome
	// Duration is the wall time spent probing.
	Duration time.Duration
}

// Prober probes a single candidate. Implementations must honor cancellation
// of the context and must always return a Result.
type Prober interface {
	Probe(ctx context.Context, c peers.Candidate) Result
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, c peers.Candidate) Result

// Probe implements Prober.
func (f ProberFunc) Probe(ctx context.Context, c peers.Candidate) Result {
	return f(ctx, c)
}

// Reachable returns a result for a candidate that answered in latencyMs.
func Reachable(c peers.Candidate, latencyMs float64, took time.Duration) Result {
	c.Latency = int(math.Round(latencyMs))
	c.Valid = true
	return Result{Candidate: c, Outcome: OutcomeReachable, Duration: took}
}

// Unreachable returns a result for a candidate that produced no measurement.
func Unreachable(c peers.Candidate, outcome Outcome, took time.Duration) Result {
	c.Latency = peers.LatencyFailed
	c.Valid = false
	return Result{Candidate: c, Outcome: outcome, Duration: took}
}

// Cancelled returns a result for a candidate whose probe was abandoned. The
// candidate is left untested.
func Cancelled(c peers.Candidate, took time.Duration) Result {
	return Result{Candidate: c.Untested(), Outcome: OutcomeCancelled, Duration: took}
}

var (
	rttPattern     = regexp.MustCompile(`min/avg/max(?:/(?:mdev|stddev))?\s*=\s*([\d.]+)/([\d.]+)/([\d.]+)`)
	averagePattern = regexp.MustCompile(`Average\s*=\s*(\d+)\s*ms`)
)

// ParseAverage extracts the average round trip in milliseconds from ping
// output. It understands the min/avg/max[/mdev] summary printed by iputils,
// BSD and busybox ping, and the Windows "Average = Nms" summary.
func ParseAverage(output string) (float64, bool) {
	if m := rttPattern.FindStringSubmatch(output); m != nil {
		avg, err := strconv.ParseFloat(m[2], 64)
		return avg, err == nil
	}
	if m := averagePattern.FindStringSubmatch(output); m != nil {
		avg, err := strconv.ParseFloat(m[1], 64)
		return avg, err == nil
	}
	return 0, false
}
