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

package scheduler

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/webmeshproj/meshpeers/pkg/peers"
	"github.com/webmeshproj/meshpeers/pkg/probe"
)

func result(batch, uri string, outcome probe.Outcome, latency int) Result {
	c := peers.New(uri)
	switch outcome {
	case probe.OutcomeReachable:
		c.Latency, c.Valid = latency, true
	case probe.OutcomeUnreachable, probe.OutcomeTimedOut:
		c.Latency = peers.LatencyFailed
	}
	return Result{Result: probe.Result{Candidate: c, Outcome: outcome}, BatchID: batch}
}

func TestAggregator(t *testing.T) {
	t.Parallel()
	agg := NewAggregator([]peers.Candidate{
		peers.New("tls://192.0.2.1:443"),
		peers.New("tcp://192.0.2.1:80"),
		peers.New("tls://192.0.2.2:443"),
		peers.New("tls://192.0.2.3:443"),
	})
	if !agg.Done() || agg.Ratio() != 1 {
		t.Fatal("an aggregator without a batch should be done")
	}
	agg.Begin("batch-1", 3, true)
	if agg.Done() {
		t.Fatal("batch should not be done before any results")
	}

	if agg.Record(result("other", "tls://192.0.2.2:443", probe.OutcomeReachable, 5)) {
		t.Error("result from another batch should be ignored")
	}
	if agg.Record(result("", "tls://192.0.2.2:443", probe.OutcomeReachable, 5)) {
		t.Error("result without a batch should be ignored")
	}
	if !agg.Record(result("batch-1", "tls://192.0.2.1:443", probe.OutcomeReachable, 20)) {
		t.Error("expected result to be recorded")
	}
	agg.Record(result("batch-1", "tls://192.0.2.2:443", probe.OutcomeTimedOut, 0))
	if agg.Ratio() < 0.66 || agg.Ratio() > 0.67 {
		t.Errorf("unexpected ratio %v", agg.Ratio())
	}
	agg.Record(result("batch-1", "tcp://192.0.2.1:80", probe.OutcomeCancelled, 0))
	if !agg.Done() {
		t.Fatal("batch should be done")
	}
	if agg.Record(result("batch-1", "tls://192.0.2.3:443", probe.OutcomeReachable, 1)) {
		t.Error("results past the submitted count should be ignored")
	}

	want := []peers.Candidate{
		{URI: "tls://192.0.2.1:443", Latency: 20, Valid: true},
		// Shares the host, and its own cancelled result does not clobber it.
		{URI: "tcp://192.0.2.1:80", Latency: 20, Valid: true},
		{URI: "tls://192.0.2.2:443", Latency: peers.LatencyFailed},
		peers.New("tls://192.0.2.3:443"),
	}
	if diff := cmp.Diff(want, agg.Candidates()); diff != "" {
		t.Errorf("unexpected candidates (-want +got):\n%s", diff)
	}
	wantOutcomes := map[probe.Outcome]int{
		probe.OutcomeReachable: 1,
		probe.OutcomeTimedOut:  1,
		probe.OutcomeCancelled: 1,
	}
	if diff := cmp.Diff(wantOutcomes, agg.Outcomes()); diff != "" {
		t.Errorf("unexpected outcomes (-want +got):\n%s", diff)
	}

	agg.Replace([]peers.Candidate{peers.New("quic://example.org:1")})
	if completed, submitted := agg.Progress(); completed != 0 || submitted != 0 {
		t.Errorf("replace should reset the batch, got %d/%d", completed, submitted)
	}
	if len(agg.Candidates()) != 1 {
		t.Error("replace should discard the previous set")
	}
}
