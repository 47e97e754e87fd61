//go:build !windows

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

package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecCapture(t *testing.T) {
	t.Parallel()

	t.Run("SeparatesStreams", func(t *testing.T) {
		t.Parallel()
		res, err := ExecCapture(context.Background(), "sh", "-c", "echo out; echo err >&2; exit 3")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.ExitCode != 3 {
			t.Errorf("exit code = %d, want 3", res.ExitCode)
		}
		if string(res.Stdout) != "out\n" || string(res.Stderr) != "err\n" {
			t.Errorf("unexpected streams: stdout=%q stderr=%q", res.Stdout, res.Stderr)
		}
		if res.Output() != "err" {
			t.Errorf("Output() = %q, want stderr", res.Output())
		}
		if !res.Contains("out") {
			t.Error("Contains should search stdout")
		}
	})

	t.Run("OutputFallsBackToStdout", func(t *testing.T) {
		t.Parallel()
		res, err := ExecCapture(context.Background(), "sh", "-c", "echo only-stdout")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Output() != "only-stdout" {
			t.Errorf("Output() = %q", res.Output())
		}
	})

	t.Run("MissingBinary", func(t *testing.T) {
		t.Parallel()
		_, err := ExecCapture(context.Background(), "/nonexistent/binary")
		if err == nil {
			t.Fatal("expected an error for a missing binary")
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, err := ExecCapture(ctx, "sleep", "5")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
	})
}
