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

// Package export writes candidate sets to CSV.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/webmeshproj/meshpeers/pkg/peers"
)

// Header is the first row of every export.
var Header = []string{"Host", "Latency (ms)", "Valid"}

// FileIOError is returned when the export file cannot be written.
type FileIOError struct {
	Path string
	Err  error
}

// Error implements error.
func (e *FileIOError) Error() string {
	return fmt.Sprintf("export peers to %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *FileIOError) Unwrap() error {
	return e.Err
}

// Export writes the candidates to the file at path, replacing it. The file
// is written next to its destination and renamed into place, so a failed
// export leaves any previous file intact.
func Export(path string, cs []peers.Candidate) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return &FileIOError{Path: path, Err: err}
	}
	tmp := f.Name()
	fail := func(err error) error {
		f.Close()
		os.Remove(tmp)
		return &FileIOError{Path: path, Err: err}
	}
	if err := Write(f, cs); err != nil {
		return fail(err)
	}
	if err := f.Chmod(0o644); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &FileIOError{Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &FileIOError{Path: path, Err: err}
	}
	return nil
}

// Write writes the header and one row per candidate to w in the given order.
func Write(w io.Writer, cs []peers.Candidate) error {
	bw := bufio.NewWriter(w)
	writeRow(bw, Header)
	for _, c := range cs {
		writeRow(bw, Row(c))
	}
	return bw.Flush()
}

// Row returns the CSV fields for a candidate.
func Row(c peers.Candidate) []string {
	return []string{c.URI, LatencyText(c), ValidityText(c)}
}

// LatencyText renders a candidate's latency.
func LatencyText(c peers.Candidate) string {
	switch {
	case c.Latency == peers.LatencyUntested:
		return "Not Tested"
	case c.Latency < peers.LatencyUntested:
		return "Failed"
	default:
		return strconv.Itoa(c.Latency)
	}
}

// ValidityText renders a candidate's validity, empty when it was not tested.
func ValidityText(c peers.Candidate) string {
	switch {
	case !c.Tested():
		return ""
	case c.Valid:
		return "Valid"
	default:
		return "Invalid"
	}
}

// writeRow quotes every field. encoding/csv only quotes fields that need it.
func writeRow(w *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteByte('\n')
}
