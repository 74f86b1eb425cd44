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
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/walteh/relocate/pkg/audit"
	"github.com/walteh/relocate/pkg/checksum"
	"github.com/walteh/relocate/pkg/copier"
	"github.com/walteh/relocate/pkg/fault"
	"github.com/walteh/relocate/pkg/log"
	"github.com/walteh/relocate/pkg/status"
	"github.com/walteh/relocate/pkg/tree"
)

// 🎯 Operation is one relocate run
type Operation interface {
	// Name is the mode, transfer, purge or verify
	Name() string
	// RunID correlates every log line of the run
	RunID() uuid.UUID
	// Execute runs the stage sequence to completion or failure
	Execute(ctx context.Context) error
}

// 🔍 Verifier compares a source tree with its copy
type Verifier interface {
	Verify(ctx context.Context, source, target string) (*checksum.Result, error)
}

// 🔧 Dependencies are the collaborators an operation drives
type Dependencies struct {
	Copier   copier.Copier
	Verifier Verifier
	Sizer    tree.Sizer
	Store    audit.Store // nil when nothing is recorded
	Tracker  *status.Tracker
	Console  *log.Logger
	// Now stamps audit records. Defaults to time.Now.
	Now func() time.Time
	// RemoveAll deletes a source tree. Defaults to os.RemoveAll.
	RemoveAll func(path string) error
}

// 📦 BaseOperation carries what every operation shares
type BaseOperation struct {
	Dependencies
	runID uuid.UUID
}

// 🏭 NewBaseOperation fills defaults for unset dependencies
func NewBaseOperation(deps Dependencies) BaseOperation {
	if deps.Sizer == nil {
		deps.Sizer = tree.NativeSizer{}
	}
	if deps.Tracker == nil {
		nop := zerolog.Nop()
		deps.Tracker = status.NewTracker(&nop)
	}
	if deps.Console == nil {
		deps.Console = log.New(io.Discard, zerolog.Disabled, log.WithZerolog(zerolog.Nop()))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.RemoveAll == nil {
		deps.RemoveAll = os.RemoveAll
	}
	return BaseOperation{Dependencies: deps, runID: uuid.New()}
}

// RunID returns the run identifier.
func (b *BaseOperation) RunID() uuid.UUID {
	return b.runID
}

// transition moves the tracker. An illegal move is a programming error and
// is classified as fault.KindUnknown.
func (b *BaseOperation) transition(ctx context.Context, to status.Stage) error {
	if err := b.Tracker.Transition(ctx, to); err != nil {
		err = fault.New(fault.KindUnknown, "stage transition", err)
		b.Tracker.Fail(ctx, err)
		return err
	}
	return nil
}

// fail marks the run failed and returns err, classified as kind when it is not already.
func (b *BaseOperation) fail(ctx context.Context, kind fault.Kind, op string, err error) error {
	if fault.KindOf(err) == fault.KindUnknown {
		err = fault.New(kind, op, err)
	}
	b.Tracker.Fail(ctx, err)
	return err
}

// removeTree deletes path after refusing roots and anything holding keep.
func (b *BaseOperation) removeTree(ctx context.Context, path, keep string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fault.New(fault.KindDeletion, "delete source", err)
	}
	if isRoot(abs) {
		return fault.Newf(fault.KindDeletion, "delete source", "refusing to delete filesystem root %s", abs)
	}
	if keep != "" {
		absKeep, err := filepath.Abs(keep)
		if err != nil {
			return fault.New(fault.KindDeletion, "delete source", err)
		}
		if copier.Within(absKeep, abs) {
			return fault.Newf(fault.KindDeletion, "delete source", "refusing to delete %s, it contains %s", abs, absKeep)
		}
	}

	zerolog.Ctx(ctx).Info().Str("path", abs).Msg("deleting source tree")
	if err := b.RemoveAll(abs); err != nil {
		return fault.New(fault.KindDeletion, "delete source", err)
	}
	return nil
}

func isRoot(abs string) bool {
	return filepath.Dir(abs) == abs
}
