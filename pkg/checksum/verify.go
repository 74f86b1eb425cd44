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
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/walteh/relocate/pkg/fault"
	"github.com/walteh/relocate/pkg/log"
	"github.com/walteh/relocate/pkg/status"
	"github.com/walteh/relocate/pkg/tree"
	"gitlab.com/tozd/go/errors"
)

// Outcomes written to the result file, md5sum -c style.
const (
	OutcomeOK         = "OK"
	OutcomeMismatch   = "FAILED"
	OutcomeReadFailed = "FAILED open or read"
)

// Failure is a manifest entry that did not match.
type Failure struct {
	Path    string
	Outcome string
	Err     error // read error, nil for a plain mismatch
}

// Result is the outcome of comparing a source tree with its copy.
type Result struct {
	Total        int // regular files in the source
	Matching     int // confirmed equal in the target
	Success      bool
	Failures     []Failure
	ManifestPath string
	ResultPath   string
}

// Err is nil on success and a fault.KindIntegrity error otherwise.
func (r *Result) Err() error {
	if r.Success {
		return nil
	}
	return fault.Newf(fault.KindIntegrity, "verify",
		"%d transferred, %d matching checksums", r.Total, r.Matching)
}

// Options configures a Verifier.
type Options struct {
	// RequireFiles makes an empty source tree a failed verification.
	RequireFiles bool
	// Reporter receives digest progress. Defaults to status.Discard.
	Reporter status.Reporter
	// Console receives one line per compared file when set.
	Console *log.Logger
}

// Verifier compares a source tree with a copy of it through an MD5 manifest.
type Verifier struct {
	opts Options
}

// NewVerifier creates a Verifier.
func NewVerifier(opts Options) *Verifier {
	if opts.Reporter == nil {
		opts.Reporter = status.Discard
	}
	return &Verifier{opts: opts}
}

// Verify digests every regular file of source, writes the manifest into
// target, then re-digests each manifest entry inside target.
//
// A returned error means verification could not be carried out at all.
// Mismatches are reported through Result, see Result.Err.
func (v *Verifier) Verify(ctx context.Context, source, target string) (*Result, error) {
	logger := zerolog.Ctx(ctx)

	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		return nil, fault.Newf(fault.KindConfiguration, "verify", "target %s is not a directory", target)
	}

	files, err := tree.Files(ctx, source)
	if err != nil {
		return nil, fault.New(fault.KindIntegrity, "enumerate source", err)
	}

	manifestName := ManifestName(source)
	for _, f := range files {
		if f.Rel == manifestName || f.Rel == ResultFileName {
			return nil, fault.Newf(fault.KindIntegrity, "write manifest",
				"source file %s collides with the verification output", f.Rel)
		}
	}

	res := &Result{
		Total:        len(files),
		ManifestPath: filepath.Join(target, manifestName),
		ResultPath:   filepath.Join(target, ResultFileName),
	}

	entries, unreadable := v.digestSource(ctx, source, files)
	res.Failures = append(res.Failures, unreadable...)

	if err := writeFileAtomic(res.ManifestPath, func(w io.Writer) error { return WriteManifest(w, entries) }); err != nil {
		return nil, fault.New(fault.KindIntegrity, "write manifest", err)
	}

	written, err := readManifestFile(res.ManifestPath)
	if err != nil {
		return nil, fault.New(fault.KindIntegrity, "read manifest", err)
	}

	outcomes := make([]Failure, 0, len(written)+len(unreadable))
	outcomes = append(outcomes, unreadable...)

	v.opts.Reporter.StartOperation(ctx, "verifying target", len(written))
	for i, e := range written {
		outcome := v.compare(ctx, target, e)
		outcomes = append(outcomes, outcome)
		if outcome.Outcome == OutcomeOK {
			res.Matching++
		} else {
			res.Failures = append(res.Failures, outcome)
		}
		v.opts.Reporter.UpdateProgress(ctx, i+1)
	}
	v.opts.Reporter.FinishOperation(ctx)

	if err := writeFileAtomic(res.ResultPath, func(w io.Writer) error { return writeResults(w, outcomes) }); err != nil {
		return nil, fault.New(fault.KindIntegrity, "write results", err)
	}

	res.Success = res.Total == res.Matching
	if res.Total == 0 {
		if v.opts.RequireFiles {
			res.Success = false
		}
		logger.Warn().Str("source", source).Bool("success", res.Success).Msg("source tree holds no regular files")
	}

	logger.Info().
		Str("source", source).
		Str("target", target).
		Int("total", res.Total).
		Int("matching", res.Matching).
		Bool("success", res.Success).
		Msg("verification complete")

	return res, nil
}

// digestSource returns manifest entries for every readable source file and
// a failure for every file that could not be read.
func (v *Verifier) digestSource(ctx context.Context, source string, files []tree.File) ([]Entry, []Failure) {
	logger := zerolog.Ctx(ctx)

	entries := make([]Entry, 0, len(files))
	var unreadable []Failure

	v.opts.Reporter.StartOperation(ctx, "digesting source", len(files))
	for i, f := range files {
		d, err := ComputeDigest(filepath.Join(source, filepath.FromSlash(f.Rel)))
		if err != nil {
			logger.Warn().Err(err).Str("file", f.Rel).Msg("source file unreadable")
			unreadable = append(unreadable, Failure{Path: f.Rel, Outcome: OutcomeReadFailed, Err: err})
			v.logFile(ctx, f.Rel, OutcomeReadFailed, true)
		} else {
			entries = append(entries, Entry{Path: f.Rel, Digest: d})
		}
		v.opts.Reporter.UpdateProgress(ctx, i+1)
	}
	v.opts.Reporter.FinishOperation(ctx)

	return entries, unreadable
}

func (v *Verifier) compare(ctx context.Context, target string, e Entry) Failure {
	got, err := ComputeDigest(filepath.Join(target, filepath.FromSlash(e.Path)))
	switch {
	case err != nil:
		zerolog.Ctx(ctx).Warn().Err(err).Str("file", e.Path).Msg("target file unreadable")
		v.logFile(ctx, e.Path, OutcomeReadFailed, true)
		return Failure{Path: e.Path, Outcome: OutcomeReadFailed, Err: err}
	case got != e.Digest:
		zerolog.Ctx(ctx).Warn().
			Str("file", e.Path).
			Str("want", e.Digest.String()).
			Str("got", got.String()).
			Msg("checksum mismatch")
		v.logFile(ctx, e.Path, OutcomeMismatch, true)
		return Failure{Path: e.Path, Outcome: OutcomeMismatch}
	default:
		v.logFile(ctx, e.Path, OutcomeOK, false)
		return Failure{Path: e.Path, Outcome: OutcomeOK}
	}
}

func (v *Verifier) logFile(ctx context.Context, path, outcome string, failed bool) {
	if v.opts.Console == nil {
		return
	}
	v.opts.Console.LogFileOperation(ctx, log.FileOperation{
		Path:     path,
		Type:     "checksum",
		Status:   outcome,
		IsFailed: failed,
	})
}

func readManifestFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Errorf("opening manifest: %w", err)
	}
	defer f.Close()
	return ReadManifest(f)
}

func writeResults(w io.Writer, outcomes []Failure) error {
	bw := bufio.NewWriter(w)
	for _, o := range outcomes {
		name, escaped := escapeName("./" + o.Path)
		if escaped {
			name = "\\" + name
		}
		if _, err := bw.WriteString(name + ": " + o.Outcome + "\n"); err != nil {
			return errors.Errorf("writing results: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return errors.Errorf("flushing results: %w", err)
	}
	return nil
}
