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
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/walteh/relocate/cmd/relocate/opts"
	"github.com/walteh/relocate/pkg/audit"
)

// VersionInfo represents the version information of the binary
type VersionInfo struct {
	Version   string   `json:"version"`
	GoVersion string   `json:"go_version"`
	Platform  string   `json:"platform"`
	Revision  string   `json:"revision"`
	Time      string   `json:"time"`
	Modified  bool     `json:"modified"`
	Drivers   []string `json:"audit_drivers"`
}

// GetVersionInfo returns the version information from build info
func GetVersionInfo() *VersionInfo {
	info := &VersionInfo{
		Version:   "dev",
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		Drivers:   audit.Drivers(),
	}

	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		if v := buildInfo.Main.Version; v != "" && v != "(devel)" {
			info.Version = v
		}
		for _, setting := range buildInfo.Settings {
			switch setting.Key {
			case "vcs.revision":
				info.Revision = setting.Value
			case "vcs.time":
				info.Time = setting.Value
			case "vcs.modified":
				info.Modified = setting.Value == "true"
			}
		}
	}

	return info
}

// FormatVersion returns a formatted string of version information
func FormatVersion(info *VersionInfo) string {
	modified := ""
	if info.Modified {
		modified = " (modified)"
	}
	return fmt.Sprintf(`🚀 relocate version info:
Version:   %s
Revision:  %s%s
Built:     %s
Go:        %s
Platform:  %s
Drivers:   %v
`, info.Version, info.Revision, modified, info.Time, info.GoVersion, info.Platform, info.Drivers)
}

// NewVersionCmd creates the version command
func NewVersionCmd(o *opts.RootOpts) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build and driver information",
		Args:  opts.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			info := GetVersionInfo()
			if asJSON {
				enc := json.NewEncoder(o.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			_, err := fmt.Fprint(o.Stdout, FormatVersion(info))
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	return cmd
}
