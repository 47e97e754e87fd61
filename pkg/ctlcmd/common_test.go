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
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/webmeshproj/meshpeers/pkg/peers"
)

var listed = []peers.Candidate{
	{URI: "tls://192.0.2.1:443", Latency: 20, Valid: true},
	{URI: "tcp://192.0.2.2:80", Latency: peers.LatencyFailed},
	peers.New("quic://[2001:db8::1]:443"),
}

func TestWritePeers(t *testing.T) {
	t.Parallel()
	decode := map[string]func([]byte) ([]peers.Candidate, error){
		outputJSON: func(b []byte) ([]peers.Candidate, error) {
			var out []peers.Candidate
			return out, json.Unmarshal(b, &out)
		},
		outputYAML: func(b []byte) ([]peers.Candidate, error) {
			var out []peers.Candidate
			return out, yaml.Unmarshal(b, &out)
		},
		outputTOML: func(b []byte) ([]peers.Candidate, error) {
			var out struct {
				Peers []peers.Candidate `toml:"peers"`
			}
			return out.Peers, toml.Unmarshal(b, &out)
		},
	}
	for format, dec := range decode {
		format, dec := format, dec
		t.Run(format, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			if err := writePeers(&buf, format, listed); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, err := dec(buf.Bytes())
			if err != nil {
				t.Fatalf("output does not decode: %v\n%s", err, buf.String())
			}
			if diff := cmp.Diff(listed, got); diff != "" {
				t.Errorf("unexpected peers (-want +got):\n%s", diff)
			}
		})
	}
	t.Run(outputTable, func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		if err := writePeers(&buf, outputTable, listed); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 4 {
			t.Fatalf("expected header and 3 rows, got:\n%s", buf.String())
		}
		for i, want := range [][]string{
			{"PEER", "LATENCY", "(MS)", "STATUS"},
			{"tls://192.0.2.1:443", "20", "Valid"},
			{"tcp://192.0.2.2:80", "Failed", "Invalid"},
			{"quic://[2001:db8::1]:443", "Not", "Tested", "-"},
		} {
			if diff := cmp.Diff(want, strings.Fields(lines[i])); diff != "" {
				t.Errorf("unexpected row %d (-want +got):\n%s", i, diff)
			}
		}
	})
}

func TestValidateOutput(t *testing.T) {
	t.Parallel()
	for _, f := range []string{outputTable, outputJSON, outputYAML, outputTOML} {
		if err := validateOutput(f); err != nil {
			t.Errorf("format %s should be valid: %v", f, err)
		}
	}
	if err := validateOutput("xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestBestPeers(t *testing.T) {
	t.Parallel()
	tc := []struct {
		name string
		in   []peers.Candidate
		n    int
		want []string
	}{
		{
			name: "ValidOnlyBestFirst",
			in: []peers.Candidate{
				{URI: "a", Latency: 30, Valid: true},
				{URI: "b", Latency: peers.LatencyFailed},
				{URI: "c", Latency: 10, Valid: true},
				{URI: "d", Latency: 20, Valid: true},
			},
			n:    2,
			want: []string{"c", "d"},
		},
		{
			name: "NoneValid",
			in: []peers.Candidate{
				{URI: "a", Latency: peers.LatencyFailed},
				peers.New("b"),
				peers.New("c"),
			},
			n:    2,
			want: []string{"a", "b"},
		},
		{
			name: "Empty",
			n:    15,
			want: []string{},
		},
	}
	for _, tt := range tc {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(tt.want, peers.URIs(bestPeers(tt.in, tt.n))); diff != "" {
				t.Errorf("unexpected selection (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCandidatesFor(t *testing.T) {
	t.Parallel()
	got, err := candidatesFor(listed, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(listed, got); diff != "" {
		t.Errorf("expected all discovered peers (-want +got):\n%s", diff)
	}

	got, err = candidatesFor(listed, []string{"tls://192.0.2.1:443", "tcp://manual.example.org:80", "tls://192.0.2.1:443"})
	if err != nil {
		t.Fatal(err)
	}
	want := []peers.Candidate{listed[0], peers.New("tcp://manual.example.org:80")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected candidates (-want +got):\n%s", diff)
	}

	if _, err := candidatesFor(listed, []string{"http://not-a-peer"}); err == nil {
		t.Error("expected error for an invalid peer URI")
	}
}
