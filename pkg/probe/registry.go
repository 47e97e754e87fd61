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
	"os"
	"sync"
)

// Registry tracks in-flight probe processes so a cancellation can ask them to
// stop. The lock only guards insertion, removal and snapshots; it is never
// held while signalling or waiting on a process.
type Registry struct {
	mu    sync.Mutex
	procs map[*os.Process]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{procs: make(map[*os.Process]struct{})}
}

// Add registers a running process.
func (r *Registry) Add(p *os.Process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs[p] = struct{}{}
}

// Remove forgets a process.
func (r *Registry) Remove(p *os.Process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.procs, p)
}

// Len returns the number of registered processes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// TerminateAll asks every registered process to exit gracefully and returns
// how many were signalled. It does not wait for them.
func (r *Registry) TerminateAll() int {
	r.mu.Lock()
	procs := make([]*os.Process, 0, len(r.procs))
	for p := range r.procs {
		procs = append(procs, p)
	}
	r.mu.Unlock()
	var n int
	for _, p := range procs {
		if terminate(p) == nil {
			n++
		}
	}
	return n
}
