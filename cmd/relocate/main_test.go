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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/relocate/pkg/audit"
	"github.com/walteh/relocate/pkg/audit/sqlite"
)

type cli struct {
	dir    string
	config string
	db     string
	source string
	parent string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	c := &cli{
		dir:    dir,
		config: filepath.Join(dir, "relocate.yaml"),
		db:     filepath.Join(dir, "audit.db"),
		source: filepath.Join(dir, "seq", "240601_run"),
		parent: filepath.Join(dir, "archive"),
	}
	require.NoError(t, os.WriteFile(c.config, []byte("audit:\n  driver: sqlite\n  path: "+c.db+"\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(c.source, "Data", "Intensities"), 0o755))
	require.NoError(t, os.MkdirAll(c.parent, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(c.source, "RunInfo.xml"), []byte(strings.Repeat("r", 10)), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(c.source, "Data", "reads.fastq"), []byte(strings.Repeat("q", 20)), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(c.source, "Data", "Intensities", "s_1.bcl"), []byte(strings.Repeat("b", 30)), 0o644))
	return c
}

func (c *cli) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"--config", c.config}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (c *cli) records(t *testing.T) []audit.TransferRecord {
	t.Helper()
	store, err := sqlite.Open(context.Background(), c.db, "")
	require.NoError(t, err)
	defer store.Close()
	recs, err := store.List(context.Background(), audit.Query{})
	require.NoError(t, err)
	return recs
}

func TestTransferCommand(t *testing.T) {
	c := newCLI(t)

	code, _, stderr := c.run(t, "transfer", c.source, c.parent, "--pi", "jdoe", "--remarks", "tier move")
	require.Equal(t, 0, code, stderr)

	target := filepath.Join(c.parent, "240601_run")
	assert.FileExists(t, filepath.Join(target, "Data", "Intensities", "s_1.bcl"))
	assert.FileExists(t, filepath.Join(target, "240601_run.md5"))
	assert.FileExists(t, filepath.Join(target, "md5_check_result.txt"))
	assert.DirExists(t, c.source)

	recs := c.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(60), recs[0].SizeInBytes)
	assert.True(t, recs[0].ChecksumVerified)
	assert.Equal(t, "jdoe", recs[0].PI)
	assert.Equal(t, "tier move", recs[0].Remarks)
	assert.Equal(t, "240601_run.md5", recs[0].FileName)
	assert.Equal(t, target, recs[0].TargetDirectory)
}

func TestTransferCommandDeleteSource(t *testing.T) {
	c := newCLI(t)

	code, _, stderr := c.run(t, "transfer", c.source, c.parent, "--pi", "jdoe", "--delete-source")
	require.Equal(t, 0, code, stderr)
	assert.NoDirExists(t, c.source)
	assert.Len(t, c.records(t), 1)
}

func TestTransferCommandSkipRecord(t *testing.T) {
	c := newCLI(t)
	// no usable store, so a record attempt would fail
	require.NoError(t, os.WriteFile(c.config, []byte("audit:\n  driver: nope\n"), 0o644))

	code, _, stderr := c.run(t, "transfer", c.source, c.parent, "--skip-record")
	require.Equal(t, 0, code, stderr)
	assert.DirExists(t, filepath.Join(c.parent, "240601_run"))
}

func TestPurgeCommand(t *testing.T) {
	c := newCLI(t)
	sheet := filepath.Join(c.dir, "SampleSheet.csv")
	require.NoError(t, os.WriteFile(sheet, []byte("Sample_ID\n"), 0o644))

	code, _, stderr := c.run(t, "purge", c.source, c.parent, sheet, "--pi", "jdoe")
	require.Equal(t, 0, code, stderr)
	assert.NoDirExists(t, c.source)

	recs := c.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(60), recs[0].SizeInBytes)
	assert.False(t, recs[0].ChecksumVerified)
	assert.Equal(t, "SampleSheet.csv", recs[0].FileName)
}

func TestVerifyCommand(t *testing.T) {
	c := newCLI(t)
	code, _, stderr := c.run(t, "transfer", c.source, c.parent, "--skip-record")
	require.Equal(t, 0, code, stderr)

	target := filepath.Join(c.parent, "240601_run")
	code, _, stderr = c.run(t, "verify", c.source, target)
	assert.Equal(t, 0, code, stderr)

	require.NoError(t, os.WriteFile(filepath.Join(target, "RunInfo.xml"), []byte("tampered!!"), 0o644))
	code, _, _ = c.run(t, "verify", c.source, target)
	assert.Equal(t, 4, code)
}

func TestHistoryCommand(t *testing.T) {
	c := newCLI(t)
	code, _, stderr := c.run(t, "transfer", c.source, c.parent, "--pi", "jdoe")
	require.Equal(t, 0, code, stderr)

	code, stdout, stderr := c.run(t, "history", "--pi", "jdoe")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "240601_run.md5")
	assert.Contains(t, stdout, "yes")

	code, stdout, _ = c.run(t, "history", "--pi", "someone-else")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "no records")
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args func(c *cli) []string
		want int
	}{
		{
			name: "missing_target_parent",
			args: func(c *cli) []string {
				return []string{"transfer", c.source, filepath.Join(c.dir, "nope"), "--pi", "jdoe"}
			},
			want: 2,
		},
		{
			name: "missing_pi",
			args: func(c *cli) []string { return []string{"transfer", c.source, c.parent} },
			want: 2,
		},
		{
			name: "wrong_arg_count",
			args: func(c *cli) []string { return []string{"purge", c.source, "--pi", "jdoe"} },
			want: 2,
		},
		{
			name: "unknown_flag",
			args: func(c *cli) []string { return []string{"transfer", "--bogus"} },
			want: 2,
		},
		{
			name: "missing_config",
			args: func(c *cli) []string {
				return []string{"--config", filepath.Join(c.dir, "absent.yaml"), "transfer", c.source, c.parent, "--pi", "jdoe"}
			},
			want: 2,
		},
		{
			name: "skip_record_with_delete_source",
			args: func(c *cli) []string {
				return []string{"transfer", c.source, c.parent, "--skip-record", "--delete-source"}
			},
			want: 2,
		},
		{
			name: "purge_missing_target",
			args: func(c *cli) []string {
				return []string{"purge", c.source, filepath.Join(c.dir, "nope"), "SampleSheet.csv", "--pi", "jdoe"}
			},
			want: 2,
		},
		{
			name: "version",
			args: func(c *cli) []string { return []string{"version"} },
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCLI(t)
			code, _, stderr := c.run(t, tt.args(c)...)
			assert.Equal(t, tt.want, code, stderr)
			assert.DirExists(t, c.source)
			assert.NoDirExists(t, filepath.Join(c.parent, "240601_run"))
			assert.NoFileExists(t, c.db, "audit store opened for a rejected run")
		})
	}
}

func TestTargetCheckedBeforeStore(t *testing.T) {
	c := newCLI(t)
	// the store cannot even be created, the target error must win
	require.NoError(t, os.WriteFile(c.config, []byte("audit:\n  driver: sqlite\n  path: /nonexistent/dir/audit.db\n"), 0o644))

	code, _, stderr := c.run(t, "transfer", c.source, filepath.Join(c.dir, "nope"), "--pi", "jdoe")
	assert.Equal(t, 2, code, stderr)
	assert.Contains(t, stderr, "ConfigurationError")

	code, _, stderr = c.run(t, "purge", c.source, filepath.Join(c.dir, "nope"), "SampleSheet.csv", "--pi", "jdoe")
	assert.Equal(t, 2, code, stderr)
	assert.DirExists(t, c.source)
}

func TestTransferCommandRefusesRelocatedSource(t *testing.T) {
	c := newCLI(t)
	// a tree produced by an earlier transfer still carries its manifest
	require.NoError(t, os.WriteFile(filepath.Join(c.source, "240601_run.md5"), []byte("old\n"), 0o644))

	code, _, stderr := c.run(t, "transfer", c.source, c.parent, "--pi", "jdoe")
	assert.Equal(t, 4, code, stderr)
	assert.Contains(t, stderr, "collides with the verification output")
	assert.DirExists(t, c.source)
	assert.Empty(t, c.records(t))
}
