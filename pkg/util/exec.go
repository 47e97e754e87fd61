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

// Package util contains small helpers shared across packages.
package util

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/webmeshproj/meshpeers/pkg/context"
)

// ExecResult is the captured output of a finished command.
type ExecResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Output returns stderr, or stdout when stderr is empty, trimmed.
func (r ExecResult) Output() string {
	if out := strings.TrimSpace(string(r.Stderr)); out != "" {
		return out
	}
	return strings.TrimSpace(string(r.Stdout))
}

// Contains reports whether s was printed on stdout or stderr.
func (r ExecResult) Contains(s string) bool {
	return bytes.Contains(r.Stdout, []byte(s)) || bytes.Contains(r.Stderr, []byte(s))
}

// ExecCapture runs a command to completion and captures stdout and stderr
// separately. A non-zero exit is reported through ExitCode, not as an error.
// The error is non-nil only when the command could not be started or the
// context ended first, in which case it wraps the context error.
func ExecCapture(ctx context.Context, command string, args ...string) (ExecResult, error) {
	log := context.LoggerFrom(ctx)
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second
	log.Debug(command, slog.String("args", strings.Join(args, " ")))
	err := cmd.Run()
	res := ExecResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if ctx.Err() != nil {
		return res, fmt.Errorf("%s %v: %w", command, args, ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("%s %v: %w", command, args, err)
	}
	return res, nil
}
