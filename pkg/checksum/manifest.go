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

package checksum

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
)

const (
	// ResultFileName is written next to the manifest inside the target.
	ResultFileName = "md5_check_result.txt"

	manifestExt = ".md5"
)

// Digest is a 128-bit MD5 content digest.
type Digest [md5.Size]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest parses 32 hex characters.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	if len(s) != 2*md5.Size {
		return d, errors.Errorf("digest %q: want %d hex characters", s, 2*md5.Size)
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return d, errors.Errorf("digest %q: %w", s, err)
	}
	return d, nil
}

// ComputeDigest streams the file at path through MD5.
func ComputeDigest(path string) (Digest, error) {
	var d Digest

	f, err := os.Open(path)
	if err != nil {
		return d, errors.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return d, errors.Errorf("reading %s: %w", path, err)
	}
	copy(d[:], h.Sum(nil))
	return d, nil
}

// Entry is one manifest line.
type Entry struct {
	Path   string // slash separated, relative to the tree root
	Digest Digest
}

// ManifestName is the manifest file name for a source directory.
func ManifestName(source string) string {
	return filepath.Base(filepath.Clean(source)) + manifestExt
}

// WriteManifest writes entries in md5sum text format, "<hex>  ./<path>".
// Names holding a backslash, CR or LF are escaped the way md5sum does.
func WriteManifest(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		name, escaped := escapeName("./" + e.Path)
		if escaped {
			if err := bw.WriteByte('\\'); err != nil {
				return errors.Errorf("writing manifest: %w", err)
			}
		}
		if _, err := bw.WriteString(e.Digest.String() + "  " + name + "\n"); err != nil {
			return errors.Errorf("writing manifest: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return errors.Errorf("flushing manifest: %w", err)
	}
	return nil
}

// ReadManifest parses md5sum formatted lines. Blank lines are skipped.
func ReadManifest(r io.Reader) ([]Entry, error) {
	var entries []Entry

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		if line == "" {
			continue
		}

		escaped := strings.HasPrefix(line, "\\")
		if escaped {
			line = line[1:]
		}
		if len(line) < 2*md5.Size+2 || line[2*md5.Size] != ' ' {
			return nil, errors.Errorf("manifest line %d: malformed", n)
		}
		d, err := ParseDigest(line[:2*md5.Size])
		if err != nil {
			return nil, errors.Errorf("manifest line %d: %w", n, err)
		}
		// text mode "  " or binary mode " *"
		if mode := line[2*md5.Size+1]; mode != ' ' && mode != '*' {
			return nil, errors.Errorf("manifest line %d: malformed", n)
		}
		name := line[2*md5.Size+2:]
		if escaped {
			if name, err = unescapeName(name); err != nil {
				return nil, errors.Errorf("manifest line %d: %w", n, err)
			}
		}
		if name == "" {
			return nil, errors.Errorf("manifest line %d: empty file name", n)
		}
		entries = append(entries, Entry{Path: strings.TrimPrefix(name, "./"), Digest: d})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Errorf("reading manifest: %w", err)
	}
	return entries, nil
}

func escapeName(name string) (string, bool) {
	if !strings.ContainsAny(name, "\\\n\r") {
		return name, false
	}
	r := strings.NewReplacer("\\", "\\\\", "\n", "\\n", "\r", "\\r")
	return r.Replace(name), true
}

func unescapeName(name string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i == len(name) {
			return "", errors.Errorf("dangling escape in %q", name)
		}
		switch name[i] {
		case '\\':
			b.WriteByte('\\')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		default:
			return "", errors.Errorf("unknown escape \\%c in %q", name[i], name)
		}
	}
	return b.String(), nil
}

// writeFileAtomic writes through a temp file and a rename.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	tempPath := path + ".tmp"

	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Errorf("creating temp file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tempPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return errors.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.Errorf("renaming temp file: %w", err)
	}
	return nil
}
