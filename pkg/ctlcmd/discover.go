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
	"github.com/spf13/cobra"
)

var (
	discoverOutput string
	discoverDedupe bool
)

func init() {
	discoverCmd.Flags().StringVarP(&discoverOutput, "output", "o", outputTable, "Output format (table, json, yaml, toml).")
	discoverCmd.Flags().BoolVar(&discoverDedupe, "dedupe", true, "Drop repeated peer URIs.")
	rootCmd.AddCommand(discoverCmd)
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List the peers published by the configured directories",
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateOutput(discoverOutput)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		found, err := discoverPeers(cmd.Context(), discoverDedupe)
		if err != nil {
			return err
		}
		return writePeers(cmd.OutOrStdout(), discoverOutput, found)
	},
}
