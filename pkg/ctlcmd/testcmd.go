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
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/webmeshproj/meshpeers/pkg/context"
	"github.com/webmeshproj/meshpeers/pkg/peers"
)

var (
	testOutput    string
	testOnlyValid bool
	testProgress  bool
)

func init() {
	testCmd.Flags().StringVarP(&testOutput, "output", "o", outputTable, "Output format (table, json, yaml, toml).")
	testCmd.Flags().BoolVar(&testOnlyValid, "only-valid", false, "Only list peers that answered.")
	testCmd.Flags().BoolVar(&testProgress, "progress", true, "Report progress on stderr.")
	rootCmd.AddCommand(testCmd)
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Discover peers and measure their latency",
	Long: `Discover peers and measure their latency.

Interrupting the command cancels the remaining probes and lists the
peers tested so far.`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateOutput(testOutput)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()
		found, err := discoverPeers(ctx, true)
		if err != nil {
			return err
		}
		tested, err := testPeers(ctx, cmd, found, testProgress)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		if err != nil {
			context.LoggerFrom(ctx).Warn("Testing cancelled, listing partial results",
				slog.Int("tested", countTested(tested)))
		}
		peers.SortByQuality(tested)
		if testOnlyValid {
			tested = peers.FilterValid(tested)
		}
		return writePeers(cmd.OutOrStdout(), testOutput, tested)
	},
}

func countTested(cs []peers.Candidate) int {
	var n int
	for _, c := range cs {
		if c.Tested() {
			n++
		}
	}
	return n
}
