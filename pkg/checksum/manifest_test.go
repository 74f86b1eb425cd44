package checksum

import (
	"bytes"
	"crypto/md5"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDigest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0o644))

	d, err := ComputeDigest(path)
	require.NoError(t, err)
	assert.Equal(t, "b1946ac92492d2347c6235b4d2611184", d.String())

	_, err = ComputeDigest(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestParseDigest(t *testing.T) {
	d, err := ParseDigest("d41d8cd98f00b204e9800998ecf8427e")
	require.NoError(t, err)
	assert.Equal(t, Digest(md5.Sum(nil)), d)

	_, err = ParseDigest("abc")
	assert.Error(t, err)

	_, err = ParseDigest(strings.Repeat("zz", md5.Size))
	assert.Error(t, err)
}

func TestManifestName(t *testing.T) {
	assert.Equal(t, "run1.md5", ManifestName("/data/run1"))
	assert.Equal(t, "run1.md5", ManifestName("/data/run1/"))
	assert.Equal(t, "run1.md5", ManifestName("run1"))
}

func TestWriteManifest(t *testing.T) {
	entries := []Entry{
		{Path: "a.txt", Digest: md5.Sum([]byte("a"))},
		{Path: "sub/b.txt", Digest: md5.Sum([]byte("b"))},
	}

	buf := &bytes.Buffer{}
	require.NoError(t, WriteManifest(buf, entries))

	want := "0cc175b9c0f1b6a831c399e269772661  ./a.txt\n" +
		"92eb5ffee6ae2fec3ad71c777531578f  ./sub/b.txt\n"
	assert.Equal(t, want, buf.String())
}

func TestManifestRoundTripEscapedNames(t *testing.T) {
	entries := []Entry{
		{Path: "plain.txt", Digest: md5.Sum([]byte("1"))},
		{Path: "back\\slash.txt", Digest: md5.Sum([]byte("2"))},
		{Path: "new\nline.txt", Digest: md5.Sum([]byte("3"))},
	}

	buf := &bytes.Buffer{}
	require.NoError(t, WriteManifest(buf, entries))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3, "escaped names must stay on one line")
	assert.True(t, strings.HasPrefix(lines[1], "\\"))
	assert.True(t, strings.HasSuffix(lines[2], "./new\\nline.txt"))

	got, err := ReadManifest(buf)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestReadManifest(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Entry
		wantErr bool
	}{
		{
			name:  "text_mode",
			input: "0cc175b9c0f1b6a831c399e269772661  ./a.txt\n",
			want:  []Entry{{Path: "a.txt", Digest: md5.Sum([]byte("a"))}},
		},
		{
			name:  "binary_mode_without_prefix",
			input: "0cc175b9c0f1b6a831c399e269772661 *a.txt\n\n",
			want:  []Entry{{Path: "a.txt", Digest: md5.Sum([]byte("a"))}},
		},
		{
			name:  "name_with_spaces",
			input: "0cc175b9c0f1b6a831c399e269772661  ./my file.txt\n",
			want:  []Entry{{Path: "my file.txt", Digest: md5.Sum([]byte("a"))}},
		},
		{
			name:    "short_line",
			input:   "0cc175b9\n",
			wantErr: true,
		},
		{
			name:    "bad_mode",
			input:   "0cc175b9c0f1b6a831c399e269772661 xa.txt\n",
			wantErr: true,
		},
		{
			name:    "bad_escape",
			input:   "\\0cc175b9c0f1b6a831c399e269772661  ./a\\t\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadManifest(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	err := writeFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write([]byte("new"))
		return err
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	assert.NoFileExists(t, path+".tmp")
}
