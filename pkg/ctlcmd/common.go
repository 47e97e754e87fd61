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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/webmeshproj/meshpeers/pkg/context"
	"github.com/webmeshproj/meshpeers/pkg/export"
	"github.com/webmeshproj/meshpeers/pkg/peers"
	"github.com/webmeshproj/meshpeers/pkg/scheduler"
)

// Output formats for candidate lists.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
	outputTOML  = "toml"
)

func validateOutput(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML, outputTOML:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// discoverPeers fetches candidates from the configured directories.
func discoverPeers(ctx context.Context, dedupe bool) ([]peers.Candidate, error) {
	d, err := cliConfig.Discovery.NewDiscoverer(cliMetrics)
	if err != nil {
		return nil, err
	}
	found, err := d.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if dedupe {
		found = peers.Dedupe(found)
	}
	context.LoggerFrom(ctx).Info("Discovered peers", slog.Int("candidates", len(found)))
	return found, nil
}

// testPeers probes every candidate and returns the tested set. When ctx is
// cancelled the partial set is returned with the context's error.
func testPeers(ctx context.Context, cmd *cobra.Command, candidates []peers.Candidate, progress bool) ([]peers.Candidate, error) {
	prober, reg := cliConfig.Probe.NewProber()
	s := scheduler.New(ctx, prober, scheduler.Options{
		Workers:  cliConfig.Scheduler.Workers,
		Registry: reg,
		Metrics:  cliMetrics,
	})
	s.Start()
	defer func() {
		go func() {
			for range s.Results() {
			}
		}()
		s.Close()
	}()
	var onProgress scheduler.ProgressFunc
	if progress {
		out := cmd.ErrOrStderr()
		onProgress = func(completed, submitted int, r scheduler.Result) {
			fmt.Fprintf(out, "\rTesting peers: %d/%d", completed, submitted)
			if completed == submitted {
				fmt.Fprintln(out)
			}
		}
	}
	return scheduler.RunBatch(ctx, s, scheduler.NewAggregator(candidates), onProgress)
}

// writePeers renders candidates in the given format.
func writePeers(w io.Writer, format string, cs []peers.Candidate) error {
	if cs == nil {
		cs = []peers.Candidate{}
	}
	switch format {
	case outputJSON:
		out, err := json.MarshalIndent(cs, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cs); err != nil {
			return err
		}
		return enc.Close()
	case outputTOML:
		return toml.NewEncoder(w).Encode(struct {
			Peers []peers.Candidate `toml:"peers"`
		}{cs})
	default:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PEER\tLATENCY (MS)\tSTATUS")
		for _, c := range cs {
			status := export.ValidityText(c)
			if status == "" {
				status = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", c.URI, export.LatencyText(c), status)
		}
		return tw.Flush()
	}
}
