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
	"github.com/walteh/relocate/pkg/checksum"
	"github.com/walteh/relocate/pkg/operation"
)

// NewVerifyCmd creates the standalone verification command
func NewVerifyCmd(o *opts.RootOpts) *cobra.Command {
	var (
		verbose      bool
		requireFiles bool
	)

	cmd := &cobra.Command{
		Use:   "verify SOURCE TARGET",
		Short: "Compare an existing copy with its source",
		Long: `Verify digests every regular file of SOURCE, writes the manifest and the
result file into TARGET and compares. Nothing is recorded or deleted.`,
		Args: opts.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sess := o.NewSession(ctx, verbose)
			op := operation.NewVerify(operation.Dependencies{
				Verifier: checksum.NewVerifier(checksum.Options{
					RequireFiles: requireFiles,
					Reporter:     sess.Tracker,
					Console:      sess.Console,
				}),
				Tracker: sess.Tracker,
				Console: sess.Console,
			}, operation.VerifyOptions{
				Source: args[0],
				Target: args[1],
			})

			return sess.Run(ctx, op)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every file and a progress bar")
	cmd.Flags().BoolVar(&requireFiles, "require-files", false, "fail when the source holds no regular files")

	return cmd
}
