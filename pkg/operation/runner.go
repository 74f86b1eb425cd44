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
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/relocate/pkg/fault"
)

// 🏃 OperationRunner executes operations
type OperationRunner struct {
	logger *zerolog.Logger
}

// 🏗️ NewRunner creates a new runner
func NewRunner(logger *zerolog.Logger) *OperationRunner {
	return &OperationRunner{
		logger: logger,
	}
}

// 🏃 Run executes an operation with a logger tagged by its run id
func (r *OperationRunner) Run(ctx context.Context, op Operation) error {
	logger := r.logger.With().
		Str("run_id", op.RunID().String()).
		Str("operation", op.Name()).
		Logger()
	ctx = logger.WithContext(ctx)

	start := time.Now()
	logger.Debug().Msg("operation started")

	err := op.Execute(ctx)

	ev := logger.Info()
	if err != nil {
		ev = logger.Error().Err(err).Str("kind", fault.KindOf(err).String())
	}
	ev.Dur("elapsed", time.Since(start)).Bool("ok", err == nil).Msg("operation finished")

	return err
}
