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
	"github.com/spf13/cobra"
	"github.com/walteh/relocate/cmd/relocate/opts"
	"github.com/walteh/relocate/pkg/audit"
	"github.com/walteh/relocate/pkg/checksum"
	"github.com/walteh/relocate/pkg/config"
	"github.com/walteh/relocate/pkg/copier"
	"github.com/walteh/relocate/pkg/fault"
	"github.com/walteh/relocate/pkg/operation"
)

// NewTransferCmd creates the copy-and-verify command
func NewTransferCmd(o *opts.RootOpts) *cobra.Command {
	var (
		pi           string
		remarks      string
		verbose      bool
		skipRecord   bool
		deleteSource bool
		requireFiles bool
	)

	cmd := &cobra.Command{
		Use:   "transfer SOURCE TARGET_PARENT",
		Short: "Copy a directory, verify every file and record the transfer",
		Long: `Transfer copies SOURCE to TARGET_PARENT/<basename of SOURCE>.
It will:
1. Copy the tree, keeping permissions, timestamps and symlinks
2. Write <basename>.md5 and md5_check_result.txt inside the copy
3. Measure the source and append a verified record to the audit store
4. With --delete-source, delete the source once the record is stored

A SOURCE that already holds <basename>.md5 or md5_check_result.txt at its top
level, for example a tree produced by an earlier transfer, is refused with an
integrity error because those names are where the verification output goes.`,
		Args: opts.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if pi == "" && !skipRecord {
				return fault.Newf(fault.KindConfiguration, "transfer", "--pi is required")
			}

			// nothing, the audit store included, is touched for an unusable target
			if _, err := copier.ResolveTarget(args[0], args[1]); err != nil {
				return err
			}

			var store audit.Store
			if !skipRecord {
				s, err := o.OpenStore(ctx, o.RoleFor(cmd, config.RoleWriter))
				if err != nil {
					return err
				}
				defer s.Close()
				store = s
			}

			sess := o.NewSession(ctx, verbose)
			op := operation.NewTransfer(operation.Dependencies{
				Copier: copier.New(copier.Options{Reporter: sess.Tracker, Console: sess.Console}),
				Verifier: checksum.NewVerifier(checksum.Options{
					RequireFiles: requireFiles,
					Reporter:     sess.Tracker,
					Console:      sess.Console,
				}),
				Store:   store,
				Tracker: sess.Tracker,
				Console: sess.Console,
			}, operation.TransferOptions{
				Source:       args[0],
				TargetParent: args[1],
				PI:           pi,
				Remarks:      remarks,
				SkipRecord:   skipRecord,
				DeleteSource: deleteSource,
			})

			return sess.Run(ctx, op)
		},
	}

	cmd.Flags().StringVar(&pi, "pi", "", "principal investigator the data belongs to")
	cmd.Flags().StringVar(&remarks, "remarks", "", "free text stored with the record")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every file and a progress bar")
	cmd.Flags().BoolVar(&skipRecord, "skip-record", false, "verify without writing an audit record")
	cmd.Flags().BoolVar(&deleteSource, "delete-source", false, "delete the source after the verified record is stored")
	cmd.Flags().BoolVar(&requireFiles, "require-files", false, "fail when the source holds no regular files")

	return cmd
}
