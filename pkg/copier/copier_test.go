package copier

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/relocate/pkg/fault"
)

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	return logger.WithContext(context.Background())
}

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
	require.NoError(t, os.Chmod(path, mode))
}

func TestResolveTarget(t *testing.T) {
	base := t.TempDir()
	source := filepath.Join(base, "data", "run1")
	parent := filepath.Join(base, "archive")
	require.NoError(t, os.MkdirAll(source, 0o755))
	require.NoError(t, os.MkdirAll(parent, 0o755))
	writeFile(t, filepath.Join(base, "file.txt"), "x", 0o644)

	tests := []struct {
		name       string
		source     string
		parent     string
		wantPath   string
		wantExists bool
		wantErr    bool
	}{
		{
			name:     "fresh_target",
			source:   source,
			parent:   parent,
			wantPath: filepath.Join(parent, "run1"),
		},
		{
			name:     "trailing_separator",
			source:   source + string(filepath.Separator),
			parent:   parent + string(filepath.Separator),
			wantPath: filepath.Join(parent, "run1"),
		},
		{
			name:    "missing_source",
			source:  filepath.Join(base, "nope"),
			parent:  parent,
			wantErr: true,
		},
		{
			name:    "source_is_file",
			source:  filepath.Join(base, "file.txt"),
			parent:  parent,
			wantErr: true,
		},
		{
			name:    "missing_parent",
			source:  source,
			parent:  filepath.Join(base, "nowhere"),
			wantErr: true,
		},
		{
			name:    "parent_is_file",
			source:  source,
			parent:  filepath.Join(base, "file.txt"),
			wantErr: true,
		},
		{
			name:    "target_inside_source",
			source:  source,
			parent:  source,
			wantErr: true,
		},
		{
			name:    "target_equals_source",
			source:  source,
			parent:  filepath.Dir(source),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveTarget(tt.source, tt.parent)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, fault.KindConfiguration, fault.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, got.Path)
			assert.Equal(t, tt.wantExists, got.Exists)
		})
	}
}

func TestResolveTargetExisting(t *testing.T) {
	base := t.TempDir()
	source := filepath.Join(base, "data", "run1")
	parent := filepath.Join(base, "archive")
	require.NoError(t, os.MkdirAll(source, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(parent, "run1"), 0o755))

	got, err := ResolveTarget(source, parent)
	require.NoError(t, err)
	assert.True(t, got.Exists)
}

func TestWithin(t *testing.T) {
	sep := string(filepath.Separator)
	root := sep + filepath.Join("data", "run1")

	assert.True(t, Within(root, root))
	assert.True(t, Within(filepath.Join(root, "sub"), root))
	assert.False(t, Within(sep+filepath.Join("data", "run10"), root))
	assert.False(t, Within(sep+"data", root))
	assert.False(t, Within(sep+filepath.Join("data", "..run1"), root))
}

func TestCopy(t *testing.T) {
	ctx := testContext(t)
	base := t.TempDir()
	source := filepath.Join(base, "src")
	target := filepath.Join(base, "dst")

	writeFile(t, filepath.Join(source, "a.txt"), "aaaaaaaaaa", 0o644)
	writeFile(t, filepath.Join(source, "b", "c.txt"), "cccccccccccccccccccc", 0o600)
	writeFile(t, filepath.Join(source, "b", "d", "run.sh"), "#!/bin/sh\n", 0o755)
	require.NoError(t, os.MkdirAll(filepath.Join(source, "empty"), 0o755))
	require.NoError(t, os.Symlink("a.txt", filepath.Join(source, "link")))

	mtime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(source, "a.txt"), mtime, mtime))

	stats, err := New(Options{}).Copy(ctx, source, target)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Files)
	assert.Equal(t, 4, stats.Dirs, "root, b, b/d and empty")
	assert.Equal(t, 1, stats.Symlinks)
	assert.Equal(t, int64(40), stats.Bytes)

	data, err := os.ReadFile(filepath.Join(target, "b", "c.txt"))
	require.NoError(t, err)
	assert.Equal(t, "cccccccccccccccccccc", string(data))

	info, err := os.Stat(filepath.Join(target, "b", "d", "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	info, err = os.Stat(filepath.Join(target, "b", "c.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	info, err = os.Stat(filepath.Join(target, "a.txt"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(mtime))

	link, err := os.Readlink(filepath.Join(target, "link"))
	require.NoError(t, err)
	assert.Equal(t, "a.txt", link)

	assert.DirExists(t, filepath.Join(target, "empty"))
	assert.FileExists(t, filepath.Join(source, "a.txt"), "source is untouched")
}

func TestCopyOverExistingTarget(t *testing.T) {
	ctx := testContext(t)
	base := t.TempDir()
	source := filepath.Join(base, "src")
	target := filepath.Join(base, "dst")

	writeFile(t, filepath.Join(source, "a.txt"), "new", 0o644)
	writeFile(t, filepath.Join(target, "a.txt"), "old content", 0o644)
	writeFile(t, filepath.Join(target, "extra.txt"), "keep", 0o644)

	c := New(Options{})
	_, err := c.Copy(ctx, source, target)
	require.NoError(t, err)
	_, err = c.Copy(ctx, source, target)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(target, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	assert.FileExists(t, filepath.Join(target, "extra.txt"))
}

func TestCopyFailure(t *testing.T) {
	if runtime.GOOS == "windows" || os.Getuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	ctx := testContext(t)
	base := t.TempDir()
	source := filepath.Join(base, "src")
	target := filepath.Join(base, "dst")

	writeFile(t, filepath.Join(source, "locked.txt"), "x", 0o000)

	_, err := New(Options{}).Copy(ctx, source, target)
	require.Error(t, err)
	assert.Equal(t, fault.KindCopy, fault.KindOf(err))
}

func TestCopyMissingSource(t *testing.T) {
	ctx := testContext(t)
	base := t.TempDir()

	_, err := New(Options{}).Copy(ctx, filepath.Join(base, "nope"), filepath.Join(base, "dst"))
	require.Error(t, err)
	assert.Equal(t, fault.KindCopy, fault.KindOf(err))
}
