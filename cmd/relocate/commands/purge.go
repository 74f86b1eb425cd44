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

package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/walteh/relocate/cmd/relocate/opts"
	"github.com/walteh/relocate/pkg/config"
	"github.com/walteh/relocate/pkg/fault"
	"github.com/walteh/relocate/pkg/operation"
)

// NewPurgeCmd creates the finalize-and-purge command
func NewPurgeCmd(o *opts.RootOpts) *cobra.Command {
	var (
		pi                 string
		remarks            string
		verbose            bool
		allowMissingTarget bool
	)

	cmd := &cobra.Command{
		Use:   "purge SOURCE TARGET SAMPLESHEET",
		Short: "Delete an already transferred source and record the deletion",
		Long: `Purge is for data copied by other means. It will:
1. Measure SOURCE, nothing is deleted if that fails
2. Delete SOURCE, nothing is recorded if that fails
3. Append an unverified record naming SAMPLESHEET

The record is written after the deletion. If the audit store fails at that
point the process exits with status 7 and logs the record for manual entry.`,
		Args: opts.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if pi == "" {
				return fault.Newf(fault.KindConfiguration, "purge", "--pi is required")
			}

			if err := operation.CheckPurgePaths(filepath.Clean(args[0]), filepath.Clean(args[1]), allowMissingTarget); err != nil {
				return fault.New(fault.KindConfiguration, "purge", err)
			}

			store, err := o.OpenStore(ctx, o.RoleFor(cmd, config.RoleWriter))
			if err != nil {
				return err
			}
			defer store.Close()

			sess := o.NewSession(ctx, verbose)
			op := operation.NewPurge(operation.Dependencies{
				Store:   store,
				Tracker: sess.Tracker,
				Console: sess.Console,
			}, operation.PurgeOptions{
				Source:             args[0],
				Target:             args[1],
				FileName:           filepath.Base(args[2]),
				PI:                 pi,
				Remarks:            remarks,
				AllowMissingTarget: allowMissingTarget,
			})

			return sess.Run(ctx, op)
		},
	}

	cmd.Flags().StringVar(&pi, "pi", "", "principal investigator the data belongs to")
	cmd.Flags().StringVar(&remarks, "remarks", "", "free text stored with the record")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print progress details")
	cmd.Flags().BoolVar(&allowMissingTarget, "allow-missing-target", false, "purge even when TARGET does not exist")

	return cmd
}
