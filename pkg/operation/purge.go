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

package operation

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/walteh/relocate/pkg/audit"
	"github.com/walteh/relocate/pkg/copier"
	"github.com/walteh/relocate/pkg/fault"
	"github.com/walteh/relocate/pkg/log"
	"github.com/walteh/relocate/pkg/status"
	"gitlab.com/tozd/go/errors"
)

// 🗑️ PurgeOptions are the inputs of a finalize-and-purge run
type PurgeOptions struct {
	Source string
	Target string
	// FileName is the samplesheet or manifest the record refers to.
	FileName string
	PI       string
	Remarks  string
	// AllowMissingTarget purges even when Target does not exist.
	AllowMissingTarget bool
}

// 🗑️ Purge deletes an already transferred source and records the deletion
type Purge struct {
	BaseOperation
	opts   PurgeOptions
	record *audit.TransferRecord
}

var _ Operation = (*Purge)(nil)

// 🏭 NewPurge creates a purge run
func NewPurge(deps Dependencies, opts PurgeOptions) *Purge {
	return &Purge{
		BaseOperation: NewBaseOperation(deps),
		opts:          opts,
	}
}

func (p *Purge) Name() string { return "purge" }

// Record is the audit record built by the run. ChecksumVerified is always false.
func (p *Purge) Record() *audit.TransferRecord { return p.record }

// 🏃 Execute runs START -> MEASURING -> PURGING -> RECORDING -> DONE.
// The record is written after the deletion; if that write fails the source is
// already gone and the error is a fault.KindAuditInconsistency.
func (p *Purge) Execute(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	if err := p.validate(); err != nil {
		return p.fail(ctx, fault.KindConfiguration, "purge", err)
	}

	p.Console.StartTransferOperation(ctx, log.TransferOperation{
		Mode:   p.Name(),
		Source: p.opts.Source,
		Target: p.opts.Target,
		PI:     p.opts.PI,
	})
	defer p.Console.EndTransferOperation(ctx)

	p.record = audit.NewRecord(p.Now(), p.opts.Source, p.opts.Target, p.opts.PI, p.opts.Remarks)
	p.record.FileName = p.opts.FileName
	// the store checks again on Append, but by then the source is gone
	if err := audit.CheckRecord(p.record); err != nil {
		return p.fail(ctx, fault.KindConfiguration, "validate record", err)
	}

	// MEASURING
	if err := p.transition(ctx, status.StageMeasuring); err != nil {
		return err
	}
	size, err := p.Sizer.DirectorySize(ctx, p.opts.Source)
	if err != nil {
		return p.fail(ctx, fault.KindMeasurement, "measure source", err)
	}
	p.record.SizeInBytes = size
	p.record.ChecksumVerified = false

	// PURGING
	if err := p.transition(ctx, status.StagePurging); err != nil {
		return err
	}
	if err := p.removeTree(ctx, p.opts.Source, p.opts.Target); err != nil {
		return p.fail(ctx, fault.KindDeletion, "delete source", err)
	}
	p.Console.Successf("deleted source %s (%s)", p.opts.Source, humanize.Bytes(uint64(size)))

	// RECORDING
	if err := p.transition(ctx, status.StageRecording); err != nil {
		return err
	}
	id, err := p.Store.Append(ctx, *p.record)
	if err != nil {
		logger.Error().
			Err(err).
			Object("record", p.record).
			Msg("source deleted but the audit record was not written, enter it manually")
		p.Console.Errorf("source deleted but the audit record was not written: %v", err)
		return p.fail(ctx, fault.KindAuditInconsistency, "record purge", err)
	}
	p.record.ID = id
	logger.Info().Object("record", p.record).Msg("purge recorded")
	p.Console.Successf("recorded purge #%d", id)

	return p.transition(ctx, status.StageDone)
}

func (p *Purge) validate() error {
	if p.Store == nil {
		return errors.New("no audit store configured")
	}
	if p.opts.Source == "" || p.opts.Target == "" {
		return errors.New("source and target are required")
	}
	p.opts.Source = filepath.Clean(p.opts.Source)
	p.opts.Target = filepath.Clean(p.opts.Target)

	if err := CheckPurgePaths(p.opts.Source, p.opts.Target, p.opts.AllowMissingTarget); err != nil {
		return err
	}
	if _, err := os.Stat(p.opts.Target); err != nil {
		p.Console.Warningf("target %s does not exist, purging anyway", p.opts.Target)
	}
	return nil
}

// CheckPurgePaths rejects a source that is missing, not a directory or a
// filesystem root, and a target that lies inside the source or is not a
// directory. A missing target passes only with allowMissingTarget.
func CheckPurgePaths(source, target string, allowMissingTarget bool) error {
	info, err := os.Lstat(source)
	if err != nil {
		return errors.Errorf("source %s: %w", source, err)
	}
	if !info.IsDir() {
		return errors.Errorf("source %s is not a directory", source)
	}

	absSource, err := filepath.Abs(source)
	if err != nil {
		return errors.Errorf("resolving source: %w", err)
	}
	if isRoot(absSource) {
		return errors.Errorf("source %s is a filesystem root", absSource)
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return errors.Errorf("resolving target: %w", err)
	}
	if copier.Within(absTarget, absSource) {
		return errors.Errorf("target %s is the source or lies inside it", target)
	}

	info, err = os.Stat(target)
	switch {
	case err == nil && !info.IsDir():
		return errors.Errorf("target %s is not a directory", target)
	case errors.Is(err, fs.ErrNotExist) && allowMissingTarget:
		return nil
	case err != nil:
		return errors.Errorf("target %s: %w", target, err)
	}
	return nil
}
