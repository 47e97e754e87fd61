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
	"github.com/webmeshproj/meshpeers/pkg/export"
)

var (
	exportTest     bool
	exportProgress bool
)

func init() {
	exportCmd.Flags().BoolVar(&exportTest, "test", false, "Test peers before exporting them.")
	exportCmd.Flags().BoolVar(&exportProgress, "progress", true, "Report test progress on stderr.")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Export discovered peers to a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()
		log := context.LoggerFrom(ctx)
		found, err := discoverPeers(ctx, true)
		if err != nil {
			return err
		}
		if exportTest {
			found, err = testPeers(ctx, cmd, found, exportProgress)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			if err != nil {
				log.Warn("Testing cancelled, exporting partial results")
			}
		}
		if err := export.Export(args[0], found); err != nil {
			return err
		}
		log.Info("Exported peers", slog.String("path", args[0]), slog.Int("peers", len(found)))
		return nil
	},
}
