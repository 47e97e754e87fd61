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

// Package merge writes a selection of tested peers into the mesh daemon's
// configuration through a privileged helper.
package merge

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/webmeshproj/meshpeers/pkg/context"
	"github.com/webmeshproj/meshpeers/pkg/metrics"
	"github.com/webmeshproj/meshpeers/pkg/peers"
	"github.com/webmeshproj/meshpeers/pkg/util"
)

//go:embed scripts/update-peers.sh
var helperScript []byte

// HelperScript returns the embedded helper script.
func HelperScript() []byte {
	return helperScript
}

const (
	// DefaultEscalator is the privilege escalation command.
	DefaultEscalator = "pkexec"
	// DefaultShell runs the helper script.
	DefaultShell = "sh"
	// DefaultTimeout is the ceiling on a helper invocation.
	DefaultTimeout = 30 * time.Second
	// DefaultSuccessMarker is the text the helper prints once the
	// configuration was written.
	DefaultSuccessMarker = "updated successfully"
	// DefaultMaxPeers is the most peers the helper writes to the
	// configuration.
	DefaultMaxPeers = 15
)

var (
	// ErrNoPeers is returned when Apply is called with an empty selection.
	ErrNoPeers = errors.New("no peers selected")
	// ErrMergeTimeout is returned when the helper does not finish in time.
	ErrMergeTimeout = errors.New("configuration helper timed out")
)

// HelperError is returned when the helper reports a failure.
type HelperError struct {
	// ExitCode is the helper's exit code.
	ExitCode int
	// Output is the helper's stderr, or stdout when stderr was empty.
	Output string
}

// Error implements error.
func (e *HelperError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("configuration helper failed with exit code %d", e.ExitCode)
	}
	return fmt.Sprintf("configuration helper failed with exit code %d: %s", e.ExitCode, e.Output)
}

// FileIOError is returned when a temporary file could not be prepared.
type FileIOError struct {
	Op   string
	Path string
	Err  error
}

// Error implements error.
func (e *FileIOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *FileIOError) Unwrap() error {
	return e.Err
}

// Merger applies peer selections to the daemon configuration.
type Merger struct {
	opts    Options
	metrics *metrics.Metrics
}

// New returns a merger. Zero fields in opts take their defaults.
func New(opts Options, m *metrics.Metrics) *Merger {
	defaults := NewOptions()
	if opts.Escalator == "" && !opts.NoEscalation {
		opts.Escalator = defaults.Escalator
	}
	if opts.Shell == "" {
		opts.Shell = defaults.Shell
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.SuccessMarker == "" {
		opts.SuccessMarker = defaults.SuccessMarker
	}
	if opts.MaxPeers <= 0 {
		opts.MaxPeers = defaults.MaxPeers
	}
	return &Merger{opts: opts, metrics: m}
}

// TransferList returns the URIs handed to the helper for a selection: the
// valid peers best first, or every selected peer when none is valid.
func TransferList(selected []peers.Candidate) []string {
	sorted := make([]peers.Candidate, len(selected))
	copy(sorted, selected)
	peers.SortByQuality(sorted)
	if valid := peers.FilterValid(sorted); len(valid) > 0 {
		return peers.URIs(valid)
	}
	return peers.URIs(sorted)
}

// Preview returns the configuration as it would look after applying the
// selection, without invoking the helper.
func (m *Merger) Preview(config []byte, selected []peers.Candidate) ([]byte, error) {
	return RewritePeers(config, TransferList(selected), m.opts.MaxPeers)
}

// Apply writes the selection to the daemon configuration. It returns nil
// once the helper reports success.
func (m *Merger) Apply(ctx context.Context, selected []peers.Candidate) error {
	log := context.LoggerFrom(ctx).With(slog.String("component", "merge"))
	if len(selected) == 0 {
		return ErrNoPeers
	}
	list := TransferList(selected)
	valid := len(peers.FilterValid(selected))
	if valid == 0 {
		log.Warn("No valid peers in selection, using all selected peers")
	}
	log.Info("Applying peers",
		slog.Int("selected", len(selected)),
		slog.Int("valid", valid),
		slog.Int("max", m.opts.MaxPeers),
	)

	listFile, err := writeTemp(m.opts.TempDir, "meshpeers-*.list", []byte(strings.Join(list, "\n")+"\n"))
	if err != nil {
		return err
	}
	defer removeTemp(log, listFile)

	helper := m.opts.Helper
	if helper == "" {
		helper, err = writeTemp(m.opts.TempDir, "meshpeers-update-*.sh", helperScript)
		if err != nil {
			return err
		}
		defer removeTemp(log, helper)
	}

	command, args := m.command(helper, listFile)
	ctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()
	res, err := util.ExecCapture(ctx, command, args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			m.metrics.ObserveMerge("timeout")
			log.Error("Configuration helper timed out", slog.Duration("timeout", m.opts.Timeout))
			return ErrMergeTimeout
		}
		m.metrics.ObserveMerge("error")
		return fmt.Errorf("run configuration helper: %w", err)
	}
	if err := m.interpret(log, res); err != nil {
		m.metrics.ObserveMerge("failed")
		return err
	}
	m.metrics.ObserveMerge("success")
	log.Info("Configuration updated", slog.Int("peers", min(len(list), m.opts.MaxPeers)))
	return nil
}

func (m *Merger) command(helper, listFile string) (string, []string) {
	var args []string
	if m.opts.Verbose {
		args = append(args, "--verbose")
	}
	if m.opts.ConfigPath != "" {
		args = append(args, "--config", m.opts.ConfigPath)
	}
	if m.opts.MaxPeers != DefaultMaxPeers {
		args = append(args, "--max", strconv.Itoa(m.opts.MaxPeers))
	}
	args = append(args, listFile)
	if m.opts.Escalator == "" {
		return m.opts.Shell, append([]string{helper}, args...)
	}
	return m.opts.Escalator, append([]string{m.opts.Shell, helper}, args...)
}

// interpret maps the helper's exit status to an error. The helper can exit
// non-zero after writing the configuration, so the success marker wins over
// the exit code.
func (m *Merger) interpret(log *slog.Logger, res util.ExecResult) error {
	if res.ExitCode == 0 {
		return nil
	}
	if res.Contains(m.opts.SuccessMarker) {
		log.Warn("Configuration helper reported success with a non-zero exit code",
			slog.Int("exit_code", res.ExitCode))
		return nil
	}
	return &HelperError{ExitCode: res.ExitCode, Output: res.Output()}
}

func writeTemp(dir, pattern string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", &FileIOError{Op: "create temporary file", Path: dir, Err: err}
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", &FileIOError{Op: "write", Path: name, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", &FileIOError{Op: "close", Path: name, Err: err}
	}
	return name, nil
}

func removeTemp(log *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("Failed to remove temporary file", slog.String("path", path), slog.String("error", err.Error()))
	}
}
