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
	"sync"

	"github.com/webmeshproj/meshpeers/pkg/peers"
	"github.com/webmeshproj/meshpeers/pkg/probe"
)

// Aggregator tracks completion of the current batch and folds results back
// into the candidate set. It is safe for concurrent use.
type Aggregator struct {
	mu        sync.Mutex
	set       *peers.Set
	batchID   string
	submitted int
	completed int
	outcomes  map[probe.Outcome]int
}

// NewAggregator returns an aggregator over the given candidates.
func NewAggregator(candidates []peers.Candidate) *Aggregator {
	return &Aggregator{
		set:      peers.NewSet(candidates),
		outcomes: make(map[probe.Outcome]int),
	}
}

// Replace discards the candidate set and any batch in progress, as a fresh
// discovery does.
func (a *Aggregator) Replace(candidates []peers.Candidate) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.set = peers.NewSet(candidates)
	a.batchID = ""
	a.submitted, a.completed = 0, 0
	a.outcomes = make(map[probe.Outcome]int)
}

// Begin starts accounting for a new batch of the given size. Results from
// any other batch are ignored from now on. When reset is true every verdict
// in the set is cleared first.
func (a *Aggregator) Begin(batchID string, submitted int, reset bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.batchID = batchID
	a.submitted = submitted
	a.completed = 0
	a.outcomes = make(map[probe.Outcome]int)
	if reset {
		a.set.Reset()
	}
}

// Record accounts for one result and reports whether it belonged to the
// current batch. Cancelled results count towards completion but leave the
// candidate set untouched.
func (a *Aggregator) Record(r Result) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if r.BatchID == "" || r.BatchID != a.batchID || a.completed >= a.submitted {
		return false
	}
	a.completed++
	a.outcomes[r.Outcome]++
	if r.Outcome != probe.OutcomeCancelled {
		a.set.Apply(r.Candidate)
	}
	return true
}

// RecordAll records every result and returns how many were accepted.
func (a *Aggregator) RecordAll(rs []Result) int {
	var n int
	for _, r := range rs {
		if a.Record(r) {
			n++
		}
	}
	return n
}

// Progress returns the completed and submitted counts of the current batch.
func (a *Aggregator) Progress() (completed, submitted int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.completed, a.submitted
}

// Ratio returns the completed fraction of the current batch.
func (a *Aggregator) Ratio() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.submitted == 0 {
		return 1
	}
	return float64(a.completed) / float64(a.submitted)
}

// Done reports whether every submitted probe has completed.
func (a *Aggregator) Done() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.completed == a.submitted
}

// Outcomes returns how many results of each outcome the current batch has seen.
func (a *Aggregator) Outcomes() map[probe.Outcome]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[probe.Outcome]int, len(a.outcomes))
	for k, v := range a.outcomes {
		out[k] = v
	}
	return out
}

// Candidates returns a copy of the candidate set.
func (a *Aggregator) Candidates() []peers.Candidate {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.set.List()
}
