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
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/walteh/relocate/cmd/relocate/opts"
	"github.com/walteh/relocate/pkg/audit"
	"github.com/walteh/relocate/pkg/config"
	"github.com/walteh/relocate/pkg/fault"
)

// NewHistoryCmd creates the audit listing command
func NewHistoryCmd(o *opts.RootOpts) *cobra.Command {
	var (
		pi     string
		source string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded transfers and purges, newest first",
		Long: `History reads the audit table with the reader role unless --role says
otherwise. Filters combine.`,
		Args: opts.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := o.OpenStore(ctx, o.RoleFor(cmd, config.RoleReader))
			if err != nil {
				return err
			}
			defer store.Close()

			lister, ok := store.(audit.Lister)
			if !ok {
				return fault.Newf(fault.KindConfiguration, "history", "audit store %T cannot list records", store)
			}

			records, err := lister.List(ctx, audit.Query{PI: pi, Source: source, Limit: limit})
			if err != nil {
				return fault.New(fault.KindAuditPersistence, "list records", err)
			}

			if len(records) == 0 {
				fmt.Fprintln(o.Stdout, "no records")
				return nil
			}

			table, err := pterm.DefaultTable.WithHasHeader().WithData(historyTable(records)).Srender()
			if err != nil {
				return fault.New(fault.KindUnknown, "render history", err)
			}
			fmt.Fprintln(o.Stdout, table)
			return nil
		},
	}

	cmd.Flags().StringVar(&pi, "pi", "", "only records of this principal investigator")
	cmd.Flags().StringVar(&source, "source", "", "only records of this source directory")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of records, 0 for all")

	return cmd
}

func historyTable(records []audit.TransferRecord) pterm.TableData {
	data := pterm.TableData{{"ID", "DATE", "SOURCE", "TARGET", "FILE", "PI", "SIZE", "VERIFIED"}}
	for _, r := range records {
		verified := "no"
		if r.ChecksumVerified {
			verified = "yes"
		}
		data = append(data, []string{
			strconv.FormatInt(r.ID, 10),
			r.Date.UTC().Format("2006-01-02 15:04:05"),
			r.SourceDirectory,
			r.TargetDirectory,
			r.FileName,
			r.PI,
			humanize.Bytes(uint64(r.SizeInBytes)),
			verified,
		})
	}
	return data
}
