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

package opts

import (
	"context"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/relocate/pkg/audit"
	"github.com/walteh/relocate/pkg/config"
	"github.com/walteh/relocate/pkg/fault"
	"github.com/walteh/relocate/pkg/log"
	"github.com/walteh/relocate/pkg/operation"
	"github.com/walteh/relocate/pkg/status"
)

// RootOpts contains shared options used by all commands
type RootOpts struct {
	ConfigFile string
	Role       string
	Local      bool
	Debug      bool

	Stdout io.Writer
	Stderr io.Writer
}

// Session is what one command invocation writes through
type Session struct {
	Logger  *zerolog.Logger
	Console *log.Logger
	Tracker *status.Tracker
}

// LoadConfig reads the config file. Failures are configuration errors.
func (o *RootOpts) LoadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx, o.ConfigFile)
	if err != nil {
		return nil, fault.New(fault.KindConfiguration, "load config", err)
	}
	return cfg, nil
}

// RoleFor returns the --role value when it was given, def otherwise.
func (o *RootOpts) RoleFor(cmd *cobra.Command, def config.Role) config.Role {
	if f := cmd.Flag("role"); f != nil && f.Changed {
		return config.ParseRole(o.Role)
	}
	return def
}

// OpenStore loads the config and connects to the audit store as role.
func (o *RootOpts) OpenStore(ctx context.Context, role config.Role) (audit.Store, error) {
	cfg, err := o.LoadConfig(ctx)
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().
		Str("store", cfg.String()).
		Str("role", string(role)).
		Bool("local", o.Local).
		Msg("opening audit store")

	store, err := audit.Open(ctx, cfg.Audit, audit.OpenOptions{Role: role, Local: o.Local})
	if err != nil {
		return nil, fault.New(fault.KindAuditPersistence, "open audit store", err)
	}
	return store, nil
}

// NewSession builds the console and tracker for one run.
func (o *RootOpts) NewSession(ctx context.Context, verbose bool) *Session {
	logger := zerolog.Ctx(ctx)

	level := zerolog.InfoLevel
	if o.Debug {
		level = zerolog.DebugLevel
	}
	console := log.New(o.Stdout, level, log.WithVerbose(verbose), log.WithZerolog(*logger))

	var trackerOpts []status.TrackerOption
	if verbose {
		trackerOpts = append(trackerOpts, status.WithProgressBar(o.Stderr))
	}

	return &Session{
		Logger:  logger,
		Console: console,
		Tracker: status.NewTracker(logger, trackerOpts...),
	}
}

// Run executes op through an operation runner.
func (s *Session) Run(ctx context.Context, op operation.Operation) error {
	return operation.NewRunner(s.Logger).Run(ctx, op)
}

// ExactArgs is cobra.ExactArgs with the error classified as a configuration error.
func ExactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fault.Newf(fault.KindConfiguration, cmd.Name(), "accepts %d arg(s), received %d", n, len(args))
		}
		return nil
	}
}
