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
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/webmeshproj/meshpeers/pkg/context"
	"github.com/webmeshproj/meshpeers/pkg/metrics"
	"github.com/webmeshproj/meshpeers/pkg/peers"
	"github.com/webmeshproj/meshpeers/pkg/probe"
)

// fakeProber reports every candidate reachable after delay, or cancelled if
// the batch is cancelled first. It tracks how many probes run at once.
type fakeProber struct {
	delay   time.Duration
	running atomic.Int32
	peak    atomic.Int32
	calls   atomic.Int32
}

func (f *fakeProber) Probe(ctx context.Context, c peers.Candidate) probe.Result {
	f.calls.Add(1)
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	select {
	case <-ctx.Done():
		return probe.Cancelled(c, 0)
	case <-time.After(f.delay):
		return probe.Reachable(c, 12.4, f.delay)
	}
}

func candidates(n int) []peers.Candidate {
	out := make([]peers.Candidate, n)
	for i := range out {
		out[i] = peers.New(fmt.Sprintf("tls://192.0.2.%d:443", i+1))
	}
	return out
}

func newStarted(t *testing.T, p probe.Prober, workers int) *Scheduler {
	t.Helper()
	s := New(context.Background(), p, Options{Workers: workers, Metrics: metrics.New()})
	s.Start()
	t.Cleanup(func() {
		go func() {
			for range s.Results() {
			}
		}()
		s.Close()
	})
	return s
}

func TestSchedulerCompletesBatch(t *testing.T) {
	t.Parallel()
	fp := &fakeProber{delay: 10 * time.Millisecond}
	s := newStarted(t, fp, 5)
	agg := NewAggregator(candidates(20))
	var progressCalls atomic.Int32
	got, err := RunBatch(context.Background(), s, agg, func(completed, submitted int, r Result) {
		progressCalls.Add(1)
		require.Equal(t, 20, submitted)
	})
	require.NoError(t, err)
	require.True(t, agg.Done())
	require.Equal(t, int32(20), progressCalls.Load())
	require.LessOrEqual(t, fp.peak.Load(), int32(5))
	for _, c := range got {
		require.True(t, c.Valid, "expected %s to be valid", c.URI)
		require.Equal(t, 12, c.Latency)
	}
}

func TestSchedulerSubmitRequiresBatch(t *testing.T) {
	t.Parallel()
	s := newStarted(t, &fakeProber{}, 1)
	require.ErrorIs(t, s.Submit(peers.New("tls://192.0.2.1:443")), ErrNoBatch)
}

func TestSchedulerSubmitAfterClose(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), &fakeProber{}, Options{Workers: 1})
	s.Start()
	s.ResetCancellation()
	go func() {
		for range s.Results() {
		}
	}()
	s.Close()
	require.ErrorIs(t, s.Submit(peers.New("tls://192.0.2.1:443")), ErrClosed)
}

func TestSchedulerCancelAllPurgesQueue(t *testing.T) {
	t.Parallel()
	const total, workers = 50, 5
	fp := &fakeProber{delay: time.Minute}
	s := newStarted(t, fp, workers)
	agg := NewAggregator(candidates(total))
	tok := s.ResetCancellation()
	agg.Begin(tok.ID(), total, true)
	for _, c := range agg.Candidates() {
		require.NoError(t, s.Submit(c))
	}
	require.Eventually(t, func() bool {
		return fp.running.Load() == workers
	}, 2*time.Second, 5*time.Millisecond)

	start := time.Now()
	purged := s.CancelAll()
	require.Less(t, time.Since(start), 100*time.Millisecond, "CancelAll must not wait for running probes")
	require.True(t, tok.Cancelled())
	require.Len(t, purged, total-workers)
	require.Equal(t, total-workers, agg.RecordAll(purged))

	var late int
	deadline := time.After(2 * time.Second)
	for !agg.Done() {
		select {
		case r := <-s.Results():
			late++
			require.Equal(t, probe.OutcomeCancelled, r.Outcome)
			agg.Record(r)
		case <-deadline:
			completed, submitted := agg.Progress()
			t.Fatalf("batch did not drain: %d/%d", completed, submitted)
		}
	}
	require.LessOrEqual(t, late, workers)
	require.Equal(t, int32(workers), fp.calls.Load(), "queued probes should never start")
	for _, c := range agg.Candidates() {
		require.False(t, c.Tested(), "cancelled candidate %s should be untested", c.URI)
	}
}

func TestSchedulerResetAfterCancel(t *testing.T) {
	t.Parallel()
	fp := &fakeProber{delay: time.Millisecond}
	s := newStarted(t, fp, 2)
	s.ResetCancellation()
	s.CancelAll()

	// A submission under the cancelled token is skipped, not probed.
	require.NoError(t, s.Submit(peers.New("tls://192.0.2.1:443")))
	r := <-s.Results()
	require.Equal(t, probe.OutcomeCancelled, r.Outcome)
	require.Zero(t, fp.calls.Load())

	agg := NewAggregator(candidates(3))
	got, err := RunBatch(context.Background(), s, agg, nil)
	require.NoError(t, err)
	require.Len(t, peers.FilterValid(got), 3)
}

func TestRunBatchContextCancel(t *testing.T) {
	t.Parallel()
	fp := &fakeProber{delay: time.Minute}
	s := newStarted(t, fp, 3)
	agg := NewAggregator(candidates(30))
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	start := time.Now()
	got, err := RunBatch(ctx, s, agg, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), 2*time.Second)
	require.True(t, agg.Done())
	require.Len(t, got, 30)
	require.Equal(t, 30, agg.Outcomes()[probe.OutcomeCancelled])
}

func TestRunBatchIgnoresStaleResults(t *testing.T) {
	t.Parallel()
	fp := &fakeProber{delay: 200 * time.Millisecond}
	s := newStarted(t, fp, 2)
	// Leave two probes of an abandoned batch running.
	s.ResetCancellation()
	require.NoError(t, s.Submit(peers.New("tls://198.51.100.1:443")))
	require.NoError(t, s.Submit(peers.New("tls://198.51.100.2:443")))

	agg := NewAggregator(candidates(4))
	got, err := RunBatch(context.Background(), s, agg, nil)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for _, c := range got {
		require.NotContains(t, c.URI, "198.51.100.")
		require.True(t, c.Valid)
	}
}

func TestSchedulerCloseDeliversQueued(t *testing.T) {
	t.Parallel()
	fp := &fakeProber{delay: time.Minute}
	s := New(context.Background(), fp, Options{Workers: 1})
	s.ResetCancellation()
	for _, c := range candidates(4) {
		require.NoError(t, s.Submit(c))
	}
	// Never started: every submission is still queued.
	var got []Result
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range s.Results() {
			got = append(got, r)
		}
	}()
	s.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("results channel was not closed")
	}
	require.Len(t, got, 4)
	for _, r := range got {
		require.Equal(t, probe.OutcomeCancelled, r.Outcome)
	}
}
