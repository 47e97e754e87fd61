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

// Package scheduler runs probes for batches of candidates on a bounded worker
// pool, supports cancelling a batch mid-flight, and accounts for completion.
package scheduler

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/webmeshproj/meshpeers/pkg/context"
	"github.com/webmeshproj/meshpeers/pkg/metrics"
	"github.com/webmeshproj/meshpeers/pkg/peers"
	"github.com/webmeshproj/meshpeers/pkg/probe"
)

// DefaultWorkers is the default number of concurrently running probes.
const DefaultWorkers = 5

var (
	// ErrClosed is returned when submitting to a closed scheduler.
	ErrClosed = errors.New("scheduler is closed")
	// ErrNoBatch is returned when submitting before ResetCancellation.
	ErrNoBatch = errors.New("no batch started, call ResetCancellation first")
)

// Options are options for the scheduler.
type Options struct {
	// Workers is the maximum number of probes running at once.
	Workers int
	// Registry holds the in-flight probe processes that CancelAll asks to
	// terminate. It may be nil for probers that do not spawn processes.
	Registry *probe.Registry
	// Metrics records probe outcomes. It may be nil.
	Metrics *metrics.Metrics
}

// Token is the cancellation scope of one batch.
type Token struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
}

func newToken(parent context.Context) *Token {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.WithBatchID(parent, id))
	return &Token{id: id, ctx: ctx, cancel: cancel}
}

// ID returns the batch ID.
func (t *Token) ID() string { return t.id }

// Cancelled reports whether the batch has been cancelled.
func (t *Token) Cancelled() bool { return t.ctx.Err() != nil }

// Cancel cancels the batch.
func (t *Token) Cancel() { t.cancel() }

// Result is a probe result tagged with the batch it belongs to.
type Result struct {
	probe.Result
	// BatchID is the ID of the token the candidate was submitted under.
	BatchID string
}

type job struct {
	candidate peers.Candidate
	token     *Token
}

// Scheduler runs probes on a fixed pool of workers. Results are delivered on
// Results in completion order. Every submission produces exactly one result,
// either on the channel or in the return value of CancelAll.
type Scheduler struct {
	prober  probe.Prober
	opts    Options
	ctx     context.Context
	log     *slog.Logger
	results chan Result

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []job
	token   *Token
	closed  bool
	started bool
	wg      sync.WaitGroup

	outMu     sync.Mutex
	outCond   *sync.Cond
	outbox    []Result
	outClosed bool
	dispatch  sync.Once
}

// New returns a new scheduler. The context is the parent of every batch and
// carries the logger.
func New(ctx context.Context, prober probe.Prober, opts Options) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	s := &Scheduler{
		prober:  prober,
		opts:    opts,
		ctx:     ctx,
		log:     context.LoggerFrom(ctx).With(slog.String("component", "scheduler")),
		results: make(chan Result, opts.Workers),
	}
	s.cond = sync.NewCond(&s.mu)
	s.outCond = sync.NewCond(&s.outMu)
	return s
}

// Start starts the workers. It is a no-op if already started or closed.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true
	s.startDispatcher()
	s.log.Debug("Starting probe workers", slog.Int("workers", s.opts.Workers))
	for i := 0; i < s.opts.Workers; i++ {
		s.wg.Add(1)
		go s.work()
	}
}

// Results returns the channel results are delivered on. It is closed after
// Close once every remaining result has been delivered.
func (s *Scheduler) Results() <-chan Result {
	return s.results
}

// ResetCancellation starts a new batch with a fresh cancellation token and
// returns it. It must be called before submitting a batch.
func (s *Scheduler) ResetCancellation() *Token {
	tok := newToken(s.ctx)
	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()
	s.log.Debug("Started new batch", slog.String("batch", tok.ID()))
	return tok
}

// Submit queues a probe for the candidate under the current batch. It never
// blocks on running probes.
func (s *Scheduler) Submit(c peers.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.token == nil {
		return ErrNoBatch
	}
	s.queue = append(s.queue, job{candidate: c, token: s.token})
	s.cond.Signal()
	return nil
}

// CancelAll cancels the current batch, asks running probe processes to
// terminate and drops every queued probe. A cancelled result for each dropped
// probe is returned to the caller instead of being delivered on Results.
// Running probes still deliver their own result. CancelAll does not wait for
// anything.
func (s *Scheduler) CancelAll() []Result {
	s.mu.Lock()
	tok := s.token
	purged := s.queue
	s.queue = nil
	s.mu.Unlock()
	if tok != nil {
		tok.Cancel()
	}
	var terminated int
	if s.opts.Registry != nil {
		terminated = s.opts.Registry.TerminateAll()
	}
	out := cancelled(purged)
	s.opts.Metrics.ObserveCancel(len(out))
	s.log.Debug("Cancelled batch",
		slog.Int("purged", len(out)),
		slog.Int("terminated", terminated),
	)
	return out
}

// Close cancels the current batch, drops queued probes and waits for the
// workers to exit. Dropped probes are delivered as cancelled results before
// Results is closed. Callers must keep draining Results until it is closed.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	tok := s.token
	purged := s.queue
	s.queue = nil
	s.cond.Broadcast()
	s.mu.Unlock()
	if tok != nil {
		tok.Cancel()
	}
	if s.opts.Registry != nil {
		s.opts.Registry.TerminateAll()
	}
	s.startDispatcher()
	for _, r := range cancelled(purged) {
		s.emit(r)
	}
	s.wg.Wait()
	s.outMu.Lock()
	s.outClosed = true
	s.outCond.Broadcast()
	s.outMu.Unlock()
	s.log.Debug("Probe workers stopped")
}

func (s *Scheduler) work() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		j := s.queue[0]
		s.queue[0] = job{}
		s.queue = s.queue[1:]
		s.mu.Unlock()
		s.emit(s.run(j))
	}
}

func (s *Scheduler) run(j job) Result {
	var res probe.Result
	if j.token.Cancelled() {
		res = probe.Cancelled(j.candidate, 0)
	} else {
		res = s.prober.Probe(j.token.ctx, j.candidate)
	}
	s.opts.Metrics.ObserveProbe(res.Outcome.String(), res.Candidate.Latency, res.Outcome == probe.OutcomeReachable)
	return Result{Result: res, BatchID: j.token.id}
}

// emit hands a result to the dispatcher without blocking.
func (s *Scheduler) emit(r Result) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.outClosed {
		return
	}
	s.outbox = append(s.outbox, r)
	s.outCond.Signal()
}

func (s *Scheduler) startDispatcher() {
	s.dispatch.Do(func() { go s.deliver() })
}

func (s *Scheduler) deliver() {
	defer close(s.results)
	for {
		s.outMu.Lock()
		for len(s.outbox) == 0 && !s.outClosed {
			s.outCond.Wait()
		}
		if len(s.outbox) == 0 {
			s.outMu.Unlock()
			return
		}
		r := s.outbox[0]
		s.outbox[0] = Result{}
		s.outbox = s.outbox[1:]
		s.outMu.Unlock()
		s.results <- r
	}
}

func cancelled(jobs []job) []Result {
	out := make([]Result, len(jobs))
	for i, j := range jobs {
		out[i] = Result{Result: probe.Cancelled(j.candidate, 0), BatchID: j.token.id}
	}
	return out
}
