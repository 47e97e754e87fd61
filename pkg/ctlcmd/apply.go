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
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/webmeshproj/meshpeers/pkg/context"
	"github.com/webmeshproj/meshpeers/pkg/merge"
	"github.com/webmeshproj/meshpeers/pkg/peers"
)

var (
	applyPeers    []string
	applySkipTest bool
	applyDryRun   bool
	applyVerbose  bool
	applyProgress bool
)

func init() {
	applyCmd.Flags().StringSliceVar(&applyPeers, "peer", nil, "Apply only these peer URIs instead of the best tested ones.")
	applyCmd.Flags().BoolVar(&applySkipTest, "skip-test", false, "Do not test peers before applying them.")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Print the resulting daemon configuration instead of writing it.")
	applyCmd.Flags().BoolVar(&applyVerbose, "verbose", false, "Ask the helper to report what it does.")
	applyCmd.Flags().BoolVar(&applyProgress, "progress", true, "Report test progress on stderr.")
	rootCmd.AddCommand(applyCmd)
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Write the best peers into the daemon configuration",
	Long: `Discover and test peers, then replace the Peers list of the daemon
configuration with the fastest reachable ones. When no peer answers, the
selection is written as is. Use --peer to choose the peers yourself.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()
		log := context.LoggerFrom(ctx)
		found, err := discoverPeers(ctx, true)
		if err != nil {
			return err
		}
		candidates, err := candidatesFor(found, applyPeers)
		if err != nil {
			return err
		}
		if !applySkipTest {
			candidates, err = testPeers(ctx, cmd, candidates, applyProgress)
			if err != nil {
				return fmt.Errorf("test peers: %w", err)
			}
		}
		selected := candidates
		if len(applyPeers) == 0 {
			selected = bestPeers(candidates, cliConfig.Merge.MaxPeers)
		}
		if len(selected) == 0 {
			return merge.ErrNoPeers
		}
		m := merge.New(cliConfig.Merge.MergerOptions(applyVerbose), cliMetrics)
		if applyDryRun {
			return previewMerge(cmd, m, selected)
		}
		if err := m.Apply(ctx, selected); err != nil {
			return err
		}
		log.Info("Peers applied", slog.Int("peers", min(len(selected), cliConfig.Merge.MaxPeers)))
		cmd.Println("Configuration updated successfully")
		return nil
	},
}

// candidatesFor returns the discovered candidates, or the requested URIs
// when any are given. Requested peers keep their discovered state.
func candidatesFor(found []peers.Candidate, uris []string) ([]peers.Candidate, error) {
	if len(uris) == 0 {
		return found, nil
	}
	byURI := make(map[string]peers.Candidate, len(found))
	for _, c := range found {
		byURI[c.URI] = c
	}
	out := make([]peers.Candidate, 0, len(uris))
	for _, uri := range uris {
		if peers.ExtractHost(uri) == "" {
			return nil, fmt.Errorf("invalid peer URI %q", uri)
		}
		c, ok := byURI[uri]
		if !ok {
			c = peers.New(uri)
		}
		out = append(out, c)
	}
	return peers.Dedupe(out), nil
}

// bestPeers returns up to n peers best first. Reachable peers are preferred;
// when none answered, the first n candidates are returned.
func bestPeers(cs []peers.Candidate, n int) []peers.Candidate {
	sorted := make([]peers.Candidate, len(cs))
	copy(sorted, cs)
	peers.SortByQuality(sorted)
	if valid := peers.FilterValid(sorted); len(valid) > 0 {
		sorted = valid
	}
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func previewMerge(cmd *cobra.Command, m *merge.Merger, selected []peers.Candidate) error {
	path := cliConfig.Merge.ConfigPath
	if path == "" {
		var err error
		path, err = merge.FindConfig()
		if err != nil {
			return err
		}
	}
	current, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read daemon configuration: %w", err)
	}
	updated, err := m.Preview(current, selected)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	_, err = cmd.OutOrStdout().Write(updated)
	return err
}
