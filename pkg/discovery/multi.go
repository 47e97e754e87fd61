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

package discovery

import (
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/webmeshproj/meshpeers/pkg/context"
	"github.com/webmeshproj/meshpeers/pkg/metrics"
	"github.com/webmeshproj/meshpeers/pkg/peers"
)

// Multi queries several directories concurrently and merges their
// candidates in directory order with duplicates removed. It fails only when
// every directory fails.
type Multi []Discoverer

// Fetch implements Discoverer.
func (m Multi) Fetch(ctx context.Context) ([]peers.Candidate, error) {
	log := context.LoggerFrom(ctx)
	found := make([][]peers.Candidate, len(m))
	errs := make([]error, len(m))
	var g errgroup.Group
	g.SetLimit(4)
	for i, d := range m {
		i, d := i, d
		g.Go(func() error {
			found[i], errs[i] = d.Fetch(ctx)
			return nil
		})
	}
	_ = g.Wait()
	out := make([]peers.Candidate, 0)
	var failed []error
	for i := range m {
		if errs[i] != nil {
			log.Warn("Skipping peer directory", slog.String("error", errs[i].Error()))
			failed = append(failed, errs[i])
			continue
		}
		out = append(out, found[i]...)
	}
	if len(m) > 0 && len(failed) == len(m) {
		return nil, errors.Join(failed...)
	}
	return peers.Dedupe(out), nil
}

// New returns a discoverer for the given directory URLs sharing opts. A
// single URL yields a plain Source. No URLs means DefaultURL.
func New(opts Options, urls []string, m *metrics.Metrics) (Discoverer, error) {
	if len(urls) == 0 {
		urls = []string{opts.URL}
	}
	if len(urls) == 1 {
		opts.URL = urls[0]
		return NewSource(opts, m)
	}
	multi := make(Multi, 0, len(urls))
	for _, u := range urls {
		o := opts
		o.URL = u
		src, err := NewSource(o, m)
		if err != nil {
			return nil, err
		}
		multi = append(multi, src)
	}
	return multi, nil
}
