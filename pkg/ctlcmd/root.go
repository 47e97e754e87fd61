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

// Package ctlcmd contains the meshpeers CLI tool.
package ctlcmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/webmeshproj/meshpeers/pkg/config"
	"github.com/webmeshproj/meshpeers/pkg/context"
	"github.com/webmeshproj/meshpeers/pkg/metrics"
	"github.com/webmeshproj/meshpeers/pkg/util/logutil"
)

var (
	configFiles []string
	cliConfig   = config.NewDefaultConfig()
	cliMetrics  = metrics.New()
)

func init() {
	cliConfig.BindFlags("", rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().StringSliceVarP(&configFiles, "config", "c", nil, "Configuration files to load (yaml, toml or json). Defaults to $"+config.ConfigFileEnv+".")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var rootCmd = &cobra.Command{
	Use:           "meshpeers",
	Short:         "meshpeers discovers, tests and applies public mesh peers",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		files := configFiles
		if len(files) == 0 {
			if path := os.Getenv(config.ConfigFileEnv); path != "" {
				files = []string{path}
			}
		}
		if err := cliConfig.LoadFrom(cmd.Flags(), files); err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		if err := cliConfig.Validate(); err != nil {
			return err
		}
		log := logutil.SetupLogging(cliConfig.Global.LogLevel, cliConfig.Global.LogFormat)
		ctx := context.WithLogger(cmd.Context(), log)
		cmd.SetContext(ctx)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if cliConfig.Global.MetricsFile == "" {
			return nil
		}
		if err := cliMetrics.WriteTextfile(cliConfig.Global.MetricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		return nil
	},
}

// signalContext returns a context that is cancelled on the first interrupt
// or termination signal. A second signal before the returned cancel func is
// called exits with status 130.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(cmd.Context())
	sig := make(chan os.Signal, 2)
	done := make(chan struct{})
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sig)
		watchSignals(ctx, sig, done, cancel, os.Exit)
	}()
	var once sync.Once
	return ctx, func() {
		cancel()
		once.Do(func() { close(done) })
	}
}

// watchSignals calls cancel on the first signal and exit(130) on the second.
// It returns once done is closed.
func watchSignals(ctx context.Context, sig <-chan os.Signal, done <-chan struct{}, cancel context.CancelFunc, exit func(int)) {
	select {
	case s := <-sig:
		context.LoggerFrom(ctx).Warn("Received signal, cancelling", slog.String("signal", s.String()))
		cancel()
	case <-done:
		return
	}
	select {
	case <-sig:
		exit(130)
	case <-done:
	}
}
