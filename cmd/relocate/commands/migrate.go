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
	"github.com/walteh/relocate/pkg/config"
	"github.com/walteh/relocate/pkg/fault"
)

// NewMigrateCmd creates the command that prepares the audit table
func NewMigrateCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the audit table and its index when missing",
		Long: `Migrate connects with the admin role unless --role says otherwise and
creates the audit table. Running it on an existing table changes nothing.`,
		Args: opts.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := o.OpenStore(ctx, o.RoleFor(cmd, config.RoleAdmin))
			if err != nil {
				return err
			}
			defer store.Close()

			migrator, ok := store.(audit.Migrator)
			if !ok {
				return fault.Newf(fault.KindConfiguration, "migrate", "audit store %T has no schema to migrate", store)
			}
			if err := migrator.Migrate(ctx); err != nil {
				return fault.New(fault.KindAuditPersistence, "migrate", err)
			}

			console := o.NewSession(ctx, false).Console
			console.Success("audit table ready")
			return nil
		},
	}

	return cmd
}
