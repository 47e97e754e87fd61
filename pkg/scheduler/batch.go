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
	"log/slog"

	"github.com/webmeshproj/meshpeers/pkg/context"
	"github.com/webmeshproj/meshpeers/pkg/peers"
)

// ProgressFunc is called after each result of the batch is recorded.
type ProgressFunc func(completed, submitted int, r Result)

// RunBatch tests every candidate in the aggregator's set and blocks until the
// batch has fully drained. When ctx is done the batch is cancelled, queued
// probes are dropped, and RunBatch keeps waiting only for the probes that were
// already running before returning the partial set along with ctx's error.
// The scheduler must be started and must not be shared with another consumer
// of its results.
func RunBatch(ctx context.Context, s *Scheduler, agg *Aggregator, onProgress ProgressFunc) ([]peers.Candidate, error) {
	log := context.LoggerFrom(ctx)
	candidates := agg.Candidates()
	tok := s.ResetCancellation()
	agg.Begin(tok.ID(), len(candidates), true)
	log.Info("Testing peers", slog.Int("candidates", len(candidates)), slog.String("batch", tok.ID()))
	for _, c := range candidates {
		if err := s.Submit(c.Untested()); err != nil {
			return agg.Candidates(), fmt.Errorf("submit %s: %w", c.URI, err)
		}
	}
	report := func(r Result) {
		if onProgress != nil {
			completed, submitted := agg.Progress()
			onProgress(completed, submitted, r)
		}
	}
	done := ctx.Done()
	var cancelErr error
	for !agg.Done() {
		select {
		case r, ok := <-s.Results():
			if !ok {
				return agg.Candidates(), ErrClosed
			}
			if agg.Record(r) {
				report(r)
			}
		case <-done:
			cancelErr = ctx.Err()
			done = nil
			for _, r := range s.CancelAll() {
				if agg.Record(r) {
					report(r)
				}
			}
			completed, submitted := agg.Progress()
			log.Info("Testing cancelled, waiting for running probes",
				slog.Int("completed", completed),
				slog.Int("submitted", submitted),
			)
		}
	}
	outcomes := agg.Outcomes()
	attrs := make([]any, 0, len(outcomes))
	for outcome, n := range outcomes {
		attrs = append(attrs, slog.Int(outcome.String(), n))
	}
	log.Info("Finished testing peers", attrs...)
	return agg.Candidates(), cancelErr
}
