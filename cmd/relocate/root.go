// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"io"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/relocate/cmd/relocate/commands"
	"github.com/walteh/relocate/cmd/relocate/opts"
	"github.com/walteh/relocate/pkg/fault"

	// audit store drivers
	_ "github.com/walteh/relocate/pkg/audit/postgres"
	_ "github.com/walteh/relocate/pkg/audit/sqlite"
)

// newRootCmd builds the command tree writing to stdout and stderr
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	o := &opts.RootOpts{
		Stdout: stdout,
		Stderr: stderr,
	}

	rootCmd := &cobra.Command{
		Use:   "relocate",
		Short: "Move sequencing data between storage tiers with checksum proof",
		Long: `relocate copies a run directory to a new location, proves the copy with
per-file MD5 digests and appends an audit record. Purge deletes data that was
already moved and records the deletion.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger := setupLogging(stderr, o.Debug)
			cmd.SetContext(logger.WithContext(cmd.Context()))
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fault.New(fault.KindConfiguration, cmd.Name(), err)
	})

	addRootFlags(rootCmd, o)

	rootCmd.AddCommand(
		commands.NewTransferCmd(o),
		commands.NewPurgeCmd(o),
		commands.NewVerifyCmd(o),
		commands.NewHistoryCmd(o),
		commands.NewMigrateCmd(o),
		commands.NewVersionCmd(o),
	)

	return rootCmd
}

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command, o *opts.RootOpts) {
	cmd.PersistentFlags().StringVarP(&o.ConfigFile, "config", "c", "relocate.yaml", "config file path (.yaml, .hcl or .json)")
	cmd.PersistentFlags().StringVar(&o.Role, "role", "writer", "database role: writer, reader or admin")
	cmd.PersistentFlags().BoolVar(&o.Local, "local", false, "trust the local CA instead of the web CA")
	cmd.PersistentFlags().BoolVarP(&o.Debug, "debug", "d", false, "enable debug logging")
}

// setupLogging configures zerolog based on flags
func setupLogging(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: color.NoColor}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
