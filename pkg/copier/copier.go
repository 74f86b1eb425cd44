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

// Package copier duplicates a directory tree under a target parent.
package copier

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/relocate/pkg/fault"
	"github.com/walteh/relocate/pkg/log"
	"github.com/walteh/relocate/pkg/status"
	"gitlab.com/tozd/go/errors"
)

// 🎯 Copier copies a source tree to a resolved target path
type Copier interface {
	Copy(ctx context.Context, source, target string) (Stats, error)
}

// 📊 Stats counts what a copy handled
type Stats struct {
	Files    int
	Dirs     int
	Symlinks int
	Skipped  int // special files
	Bytes    int64
}

// 📍 Target is where a source tree will land
type Target struct {
	Path   string
	Exists bool
}

// 🔍 ResolveTarget validates source and parent and returns parent/basename(source).
// The parent is never created.
func ResolveTarget(source, parent string) (Target, error) {
	source = cleanPath(source)
	parent = cleanPath(parent)

	info, err := os.Stat(source)
	if err != nil {
		return Target{}, fault.New(fault.KindConfiguration, "resolve target", errors.Errorf("source %s: %w", source, err))
	}
	if !info.IsDir() {
		return Target{}, fault.Newf(fault.KindConfiguration, "resolve target", "source %s is not a directory", source)
	}

	info, err = os.Stat(parent)
	if err != nil {
		return Target{}, fault.New(fault.KindConfiguration, "resolve target", errors.Errorf("target parent %s: %w", parent, err))
	}
	if !info.IsDir() {
		return Target{}, fault.Newf(fault.KindConfiguration, "resolve target", "target parent %s is not a directory", parent)
	}

	target := filepath.Join(parent, filepath.Base(source))

	absSource, err := filepath.Abs(source)
	if err != nil {
		return Target{}, fault.New(fault.KindConfiguration, "resolve target", err)
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return Target{}, fault.New(fault.KindConfiguration, "resolve target", err)
	}
	if Within(absTarget, absSource) {
		return Target{}, fault.Newf(fault.KindConfiguration, "resolve target",
			"target %s is inside source %s", target, source)
	}

	t := Target{Path: target}
	if _, err := os.Lstat(target); err == nil {
		t.Exists = true
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Target{}, fault.New(fault.KindConfiguration, "resolve target", errors.Errorf("target %s: %w", target, err))
	}
	return t, nil
}

// Within reports whether path equals root or lies below it. Both must be absolute and clean.
func Within(path, root string) bool {
	if path == root {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func cleanPath(p string) string {
	if p == "" {
		return p
	}
	trimmed := strings.TrimRight(p, string(filepath.Separator))
	if trimmed == "" {
		return string(filepath.Separator)
	}
	return filepath.Clean(trimmed)
}

// 🔧 Options configures a TreeCopier
type Options struct {
	// Reporter receives per-entry progress. Defaults to status.Discard.
	Reporter status.Reporter
	// Console receives one line per entry when set.
	Console *log.Logger
}

// 📦 TreeCopier is the filesystem Copier
type TreeCopier struct {
	opts Options
}

// 🏭 New creates a TreeCopier
func New(opts Options) *TreeCopier {
	if opts.Reporter == nil {
		opts.Reporter = status.Discard
	}
	return &TreeCopier{opts: opts}
}

type entry struct {
	rel  string
	info fs.FileInfo
}

// 🏃 Copy recreates source under target. Regular files keep their permission
// bits and modification times, symlinks are recreated verbatim, special files
// are skipped. A failure leaves the partial tree in place.
func (c *TreeCopier) Copy(ctx context.Context, source, target string) (Stats, error) {
	logger := zerolog.Ctx(ctx)
	var stats Stats

	entries, err := collect(source)
	if err != nil {
		return stats, fault.New(fault.KindCopy, "copy", err)
	}

	c.opts.Reporter.StartOperation(ctx, "copying", len(entries))
	defer c.opts.Reporter.FinishOperation(ctx)

	var dirs []entry
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return stats, fault.New(fault.KindCopy, "copy", errors.Errorf("copy interrupted: %w", err))
		}

		src := filepath.Join(source, e.rel)
		dst := filepath.Join(target, e.rel)
		mode := e.info.Mode()

		switch {
		case mode.IsDir():
			if err := makeWritableDir(dst); err != nil {
				return stats, fault.New(fault.KindCopy, "copy", err)
			}
			dirs = append(dirs, e)
			stats.Dirs++
		case mode.IsRegular():
			_, statErr := os.Lstat(dst)
			if err := copyFile(src, dst, e.info); err != nil {
				c.logEntry(ctx, e, "file", "FAILED", false, true)
				return stats, fault.New(fault.KindCopy, "copy", err)
			}
			stats.Files++
			stats.Bytes += e.info.Size()
			c.logEntry(ctx, e, "file", "copied", statErr != nil, false)
		case mode&fs.ModeSymlink != 0:
			if err := copySymlink(src, dst); err != nil {
				c.logEntry(ctx, e, "symlink", "FAILED", false, true)
				return stats, fault.New(fault.KindCopy, "copy", err)
			}
			stats.Symlinks++
			c.logEntry(ctx, e, "symlink", "linked", true, false)
		default:
			logger.Warn().Str("path", src).Str("mode", mode.String()).Msg("skipping special file")
			stats.Skipped++
			c.logEntry(ctx, e, "special", "skipped", false, false)
		}
		c.opts.Reporter.UpdateProgress(ctx, i+1)
	}

	// deepest first so writing children does not bump parent mtimes afterwards
	for i := len(dirs) - 1; i >= 0; i-- {
		d := dirs[i]
		dst := filepath.Join(target, d.rel)
		if err := os.Chmod(dst, d.info.Mode().Perm()); err != nil {
			return stats, fault.New(fault.KindCopy, "copy", errors.Errorf("setting mode on %s: %w", dst, err))
		}
		if err := os.Chtimes(dst, d.info.ModTime(), d.info.ModTime()); err != nil {
			return stats, fault.New(fault.KindCopy, "copy", errors.Errorf("setting times on %s: %w", dst, err))
		}
	}

	logger.Info().
		Str("source", source).
		Str("target", target).
		Int("files", stats.Files).
		Int("dirs", stats.Dirs).
		Int("symlinks", stats.Symlinks).
		Int("skipped", stats.Skipped).
		Int64("bytes", stats.Bytes).
		Msg("copy complete")

	return stats, nil
}

// collect lists every entry below source, the root first, parents before children.
func collect(source string) ([]entry, error) {
	var entries []entry
	err := filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.Errorf("walking %s: %w", path, err)
		}
		info, err := d.Info()
		if err != nil {
			return errors.Errorf("stat %s: %w", path, err)
		}
		rel, err := filepath.Rel(source, path)
		if err != nil {
			return errors.Errorf("relative path for %s: %w", path, err)
		}
		entries = append(entries, entry{rel: rel, info: info})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// makeWritableDir creates dst, or opens up an existing one left read-only by an
// earlier copy. The final directory pass restores the source mode.
func makeWritableDir(dst string) error {
	if err := os.MkdirAll(dst, 0o700); err != nil {
		return errors.Errorf("creating directory %s: %w", dst, err)
	}
	fi, err := os.Stat(dst)
	if err != nil {
		return errors.Errorf("stat %s: %w", dst, err)
	}
	if perm := fi.Mode().Perm(); perm&0o700 != 0o700 {
		if err := os.Chmod(dst, perm|0o700); err != nil {
			return errors.Errorf("opening up %s: %w", dst, err)
		}
	}
	return nil
}

// copyFile writes src to a temporary file next to dst and renames it into
// place, so an existing read-only dst is replaced rather than opened.
func copyFile(src, dst string, info fs.FileInfo) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return errors.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	// a directory at dst cannot be renamed over
	if fi, statErr := os.Lstat(dst); statErr == nil && fi.IsDir() {
		if err := os.RemoveAll(dst); err != nil {
			return errors.Errorf("replacing %s: %w", dst, err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".relocate-*")
	if err != nil {
		return errors.Errorf("creating %s: %w", dst, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return errors.Errorf("copying %s: %w", src, err)
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		return errors.Errorf("setting mode on %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Errorf("closing %s: %w", dst, err)
	}
	if err := os.Chtimes(tmpName, info.ModTime(), info.ModTime()); err != nil {
		return errors.Errorf("setting times on %s: %w", dst, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return errors.Errorf("replacing %s: %w", dst, err)
	}
	return nil
}

func copySymlink(src, dst string) error {
	link, err := os.Readlink(src)
	if err != nil {
		return errors.Errorf("reading link %s: %w", src, err)
	}
	if _, err := os.Lstat(dst); err == nil {
		if err := os.RemoveAll(dst); err != nil {
			return errors.Errorf("replacing %s: %w", dst, err)
		}
	}
	if err := os.Symlink(link, dst); err != nil {
		return errors.Errorf("creating link %s: %w", dst, err)
	}
	return nil
}

func (c *TreeCopier) logEntry(ctx context.Context, e entry, typ, outcome string, isNew, failed bool) {
	if c.opts.Console == nil {
		return
	}
	var size int64
	if typ == "file" {
		size = e.info.Size()
	}
	c.opts.Console.LogFileOperation(ctx, log.FileOperation{
		Path:      filepath.ToSlash(e.rel),
		Type:      typ,
		Status:    outcome,
		Size:      size,
		IsNew:     isNew,
		IsSkipped: typ == "special",
		IsFailed:  failed,
	})
}
