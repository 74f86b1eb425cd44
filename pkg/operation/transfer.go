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
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/walteh/relocate/pkg/audit"
	"github.com/walteh/relocate/pkg/checksum"
	"github.com/walteh/relocate/pkg/copier"
	"github.com/walteh/relocate/pkg/fault"
	"github.com/walteh/relocate/pkg/log"
	"github.com/walteh/relocate/pkg/status"
	"gitlab.com/tozd/go/errors"
)

// 📦 TransferOptions are the inputs of a copy-and-verify run
type TransferOptions struct {
	Source       string
	TargetParent string
	PI           string
	Remarks      string
	// SkipRecord verifies without writing to the audit store.
	SkipRecord bool
	// DeleteSource removes the source once the verified record is persisted.
	DeleteSource bool
}

// 📦 Transfer copies a tree, verifies the copy and records it
type Transfer struct {
	BaseOperation
	opts   TransferOptions
	target copier.Target
	record *audit.TransferRecord
	result *checksum.Result
	stats  copier.Stats
}

var _ Operation = (*Transfer)(nil)

// 🏭 NewTransfer creates a transfer run
func NewTransfer(deps Dependencies, opts TransferOptions) *Transfer {
	return &Transfer{
		BaseOperation: NewBaseOperation(deps),
		opts:          opts,
	}
}

func (t *Transfer) Name() string { return "transfer" }

// Record is the audit record, persisted when Execute succeeded without SkipRecord.
func (t *Transfer) Record() *audit.TransferRecord { return t.record }

// Result is the verification outcome, nil before VERIFYING ran.
func (t *Transfer) Result() *checksum.Result { return t.result }

// Stats reports what the copy handled.
func (t *Transfer) Stats() copier.Stats { return t.stats }

// Target is the resolved copy location.
func (t *Transfer) Target() copier.Target { return t.target }

// 🏃 Execute runs START -> COPYING -> VERIFYING -> RECORDING [-> PURGING] -> DONE
func (t *Transfer) Execute(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	if err := t.validate(); err != nil {
		return t.fail(ctx, fault.KindConfiguration, "transfer", err)
	}

	target, err := copier.ResolveTarget(t.opts.Source, t.opts.TargetParent)
	if err != nil {
		return t.fail(ctx, fault.KindConfiguration, "resolve target", err)
	}
	t.target = target
	if target.Exists {
		t.Console.Warningf("target %s already exists, files will be overwritten", target.Path)
	}

	t.Console.StartTransferOperation(ctx, log.TransferOperation{
		Mode:   t.Name(),
		Source: t.opts.Source,
		Target: target.Path,
		PI:     t.opts.PI,
	})
	defer t.Console.EndTransferOperation(ctx)

	t.record = audit.NewRecord(t.Now(), t.opts.Source, target.Path, t.opts.PI, t.opts.Remarks)
	if !t.opts.SkipRecord {
		// a record the store would reject must not cost a full copy
		planned := *t.record
		planned.FileName = checksum.ManifestName(t.opts.Source)
		if err := audit.CheckRecord(&planned); err != nil {
			return t.fail(ctx, fault.KindConfiguration, "validate record", err)
		}
	}

	// COPYING
	if err := t.transition(ctx, status.StageCopying); err != nil {
		return err
	}
	stats, err := t.Copier.Copy(ctx, t.opts.Source, target.Path)
	if err != nil {
		return t.fail(ctx, fault.KindCopy, "copy", err)
	}
	t.stats = stats

	// VERIFYING
	if err := t.transition(ctx, status.StageVerifying); err != nil {
		return err
	}
	res, err := t.Verifier.Verify(ctx, t.opts.Source, target.Path)
	if err != nil {
		return t.fail(ctx, fault.KindIntegrity, "verify", err)
	}
	t.result = res
	if !res.Success {
		t.Console.Errorf("%d transferred, %d matching checksums", res.Total, res.Matching)
		return t.fail(ctx, fault.KindIntegrity, "verify", res.Err())
	}
	t.Console.Successf("%d transferred, %d matching checksums", res.Total, res.Matching)

	if t.opts.SkipRecord {
		t.record.FileName = checksum.ManifestName(t.opts.Source)
		t.record.ChecksumVerified = true
		logger.Info().Msg("recording skipped")
		t.Console.Info("audit record not written (--skip-record)")
		return t.transition(ctx, status.StageDone)
	}

	// RECORDING
	if err := t.transition(ctx, status.StageRecording); err != nil {
		return err
	}
	size, err := t.Sizer.DirectorySize(ctx, t.opts.Source)
	if err != nil {
		return t.fail(ctx, fault.KindMeasurement, "measure source", err)
	}
	t.record.SizeInBytes = size
	t.record.FileName = checksum.ManifestName(t.opts.Source)
	t.record.ChecksumVerified = true

	id, err := t.Store.Append(ctx, *t.record)
	if err != nil {
		return t.fail(ctx, fault.KindAuditPersistence, "record transfer", err)
	}
	t.record.ID = id
	logger.Info().Object("record", t.record).Msg("transfer recorded")
	t.Console.Successf("recorded transfer #%d (%s)", id, humanize.Bytes(uint64(size)))

	// PURGING
	if t.opts.DeleteSource {
		if err := t.transition(ctx, status.StagePurging); err != nil {
			return err
		}
		if err := t.removeTree(ctx, t.opts.Source, target.Path); err != nil {
			return t.fail(ctx, fault.KindDeletion, "delete source", err)
		}
		t.Console.Successf("deleted source %s", t.opts.Source)
	}

	return t.transition(ctx, status.StageDone)
}

func (t *Transfer) validate() error {
	if t.Copier == nil || t.Verifier == nil {
		return errors.New("copier and verifier are required")
	}
	if t.opts.Source == "" || t.opts.TargetParent == "" {
		return errors.New("source and target parent are required")
	}
	t.opts.Source = filepath.Clean(t.opts.Source)
	if t.opts.SkipRecord && t.opts.DeleteSource {
		return errors.New("deleting the source requires a persisted record, drop --skip-record")
	}
	if !t.opts.SkipRecord && t.Store == nil {
		return errors.New("no audit store configured")
	}
	return nil
}
