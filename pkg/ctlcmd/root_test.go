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

package ctlcmd

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/webmeshproj/meshpeers/pkg/context"
)

func TestWatchSignals(t *testing.T) {
	t.Parallel()
	tc := []struct {
		name       string
		signals    int
		wantCancel bool
		wantExit   bool
	}{
		{"NoSignal", 0, false, false},
		{"FirstSignalCancels", 1, true, false},
		{"SecondSignalExits", 2, true, true},
	}
	for _, tt := range tc {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sig := make(chan os.Signal, 2)
			done := make(chan struct{})
			cancelled := make(chan struct{})
			exited := make(chan int, 1)
			returned := make(chan struct{})
			go func() {
				defer close(returned)
				watchSignals(ctx, sig, done, func() {
					cancel()
					close(cancelled)
				}, func(code int) { exited <- code })
			}()
			for i := 0; i < tt.signals; i++ {
				sig <- syscall.SIGTERM
			}
			if tt.wantExit {
				select {
				case code := <-exited:
					if code != 130 {
						t.Errorf("expected exit status 130, got %d", code)
					}
				case <-time.After(5 * time.Second):
					t.Fatal("second signal did not exit")
				}
			}
			if tt.wantCancel {
				select {
				case <-cancelled:
				case <-time.After(5 * time.Second):
					t.Fatal("first signal did not cancel")
				}
			}
			close(done)
			select {
			case <-returned:
			case <-time.After(5 * time.Second):
				t.Fatal("watcher did not return after done")
			}
			if !tt.wantExit && len(exited) != 0 {
				t.Errorf("unexpected exit with status %d", <-exited)
			}
			select {
			case <-cancelled:
				if !tt.wantCancel {
					t.Error("unexpected cancellation")
				}
			default:
			}
		})
	}
}
