// Package tree enumerates the regular files of a directory tree.
package tree

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// File is a regular file found under a root.
type File struct {
	Rel  string      // slash separated path relative to the root
	Size int64       // size in bytes
	Mode fs.FileMode // permission bits
}

// Files returns every regular file under root in lexical order of Rel.
// Symlinks are not followed and are not reported, nor are special files.
func Files(ctx context.Context, root string) ([]File, error) {
	logger := zerolog.Ctx(ctx)

	var files []File
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.Errorf("walking %s: %w", path, err)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return errors.Errorf("stat %s: %w", path, err)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return errors.Errorf("relative path of %s: %w", path, err)
		}
		files = append(files, File{
			Rel:  filepath.ToSlash(rel),
			Size: info.Size(),
			Mode: info.Mode().Perm(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })

	logger.Debug().Str("root", root).Int("files", len(files)).Msg("enumerated tree")
	return files, nil
}

// Size is the aggregate size in bytes of the regular files under root.
// Directory entries and symlinks contribute nothing.
func Size(ctx context.Context, root string) (int64, error) {
	files, err := Files(ctx, root)
	if err != nil {
		return 0, errors.Errorf("sizing %s: %w", root, err)
	}
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total, nil
}

// Sizer measures directory trees.
type Sizer interface {
	DirectorySize(ctx context.Context, path string) (int64, error)
}

// NativeSizer implements Sizer with Size.
type NativeSizer struct{}

func (NativeSizer) DirectorySize(ctx context.Context, path string) (int64, error) {
	return Size(ctx, path)
}
