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

// Package peers contains the candidate peer model shared by discovery,
// probing, merging and exporting.
package peers

import (
	"fmt"
	"sort"
)

const (
	// LatencyUntested marks a candidate that has not produced a verdict yet.
	LatencyUntested = -1
	// LatencyFailed marks a candidate whose probe ran and failed.
	LatencyFailed = -2
)

// Candidate is a discovered peer endpoint eligible for testing and adoption.
type Candidate struct {
	// URI is the full peer address as discovered, e.g. tls://[2001:db8::1]:1234.
	URI string `json:"uri" yaml:"uri" toml:"uri"`
	// Latency is the average round trip in milliseconds, or one of
	// LatencyUntested and LatencyFailed.
	Latency int `json:"latencyMs" yaml:"latencyMs" toml:"latencyMs"`
	// Valid is true only when a probe succeeded with a latency measurement.
	Valid bool `json:"valid" yaml:"valid" toml:"valid"`
}

// New returns an untested candidate for the given URI.
func New(uri string) Candidate {
	return Candidate{URI: uri, Latency: LatencyUntested}
}

// Host returns the bare host of the candidate, or an empty string if the URI
// does not match the peer grammar.
func (c Candidate) Host() string {
	return ExtractHost(c.URI)
}

// Tested reports whether a probe has produced a verdict for the candidate.
func (c Candidate) Tested() bool {
	return c.Latency != LatencyUntested
}

// Failed reports whether the candidate was tested and found unreachable.
func (c Candidate) Failed() bool {
	return c.Latency < LatencyUntested
}

// Untested returns a copy of the candidate with its test verdict cleared.
func (c Candidate) Untested() Candidate {
	c.Latency = LatencyUntested
	c.Valid = false
	return c
}

// String implements fmt.Stringer.
func (c Candidate) String() string {
	switch {
	case c.Valid:
		return fmt.Sprintf("%s (%dms)", c.URI, c.Latency)
	case c.Failed():
		return fmt.Sprintf("%s (failed)", c.URI)
	default:
		return fmt.Sprintf("%s (not tested)", c.URI)
	}
}

// BetterThan reports whether a should be preferred over b. Valid peers come
// before invalid peers and valid peers are ordered by ascending latency.
func BetterThan(a, b Candidate) bool {
	if a.Valid && b.Valid {
		return a.Latency < b.Latency
	}
	return a.Valid && !b.Valid
}

// SortByQuality sorts the candidates in place with BetterThan. The order of
// peers that compare equal, including all invalid peers, is preserved.
func SortByQuality(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		return BetterThan(cs[i], cs[j])
	})
}

// FilterValid returns the valid candidates in their original order.
func FilterValid(cs []Candidate) []Candidate {
	out := make([]Candidate, 0, len(cs))
	for _, c := range cs {
		if c.Valid {
			out = append(out, c)
		}
	}
	return out
}

// Dedupe returns the candidates with repeated URIs removed, keeping the first.
func Dedupe(cs []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(cs))
	out := make([]Candidate, 0, len(cs))
	for _, c := range cs {
		if _, ok := seen[c.URI]; ok {
			continue
		}
		seen[c.URI] = struct{}{}
		out = append(out, c)
	}
	return out
}

// URIs returns the URI of every candidate.
func URIs(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.URI
	}
	return out
}
