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

package peers

// Set is an ordered collection of candidates from one discovery cycle.
// It is not safe for concurrent use.
type Set struct {
	list []Candidate
}

// NewSet returns a set holding a copy of the given candidates.
func NewSet(cs []Candidate) *Set {
	list := make([]Candidate, len(cs))
	copy(list, cs)
	return &Set{list: list}
}

// Len returns the number of candidates in the set.
func (s *Set) Len() int {
	return len(s.list)
}

// List returns a copy of the candidates in discovery order.
func (s *Set) List() []Candidate {
	out := make([]Candidate, len(s.list))
	copy(out, s.list)
	return out
}

// Apply merges a tested candidate back into the set. Every entry sharing the
// tested candidate's host takes the new latency and validity, since a probe
// measures the host and not the transport. A URI outside the grammar only
// matches itself. Apply returns the number of entries updated.
func (s *Set) Apply(tested Candidate) int {
	host := tested.Host()
	var n int
	for i := range s.list {
		match := s.list[i].URI == tested.URI
		if !match && host != "" {
			match = s.list[i].Host() == host
		}
		if !match {
			continue
		}
		s.list[i].Latency = tested.Latency
		s.list[i].Valid = tested.Valid
		n++
	}
	return n
}

// Reset clears every test verdict in the set.
func (s *Set) Reset() {
	for i := range s.list {
		s.list[i] = s.list[i].Untested()
	}
}
