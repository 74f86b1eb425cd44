package operation

import (
	"context"
	"path/filepath"

	"github.com/walteh/relocate/pkg/checksum"
	"github.com/walteh/relocate/pkg/fault"
	"github.com/walteh/relocate/pkg/log"
	"github.com/walteh/relocate/pkg/status"
	"gitlab.com/tozd/go/errors"
)

// 🔍 VerifyOptions are the inputs of a standalone verification
type VerifyOptions struct {
	Source string
	Target string
}

// 🔍 Verify checks an existing copy against its source without recording anything
type Verify struct {
	BaseOperation
	opts   VerifyOptions
	result *checksum.Result
}

var _ Operation = (*Verify)(nil)

// 🏭 NewVerify creates a verification run
func NewVerify(deps Dependencies, opts VerifyOptions) *Verify {
	return &Verify{
		BaseOperation: NewBaseOperation(deps),
		opts:          opts,
	}
}

func (v *Verify) Name() string { return "verify" }

// Result is the verification outcome.
func (v *Verify) Result() *checksum.Result { return v.result }

// 🏃 Execute runs START -> VERIFYING -> DONE
func (v *Verify) Execute(ctx context.Context) error {
	if v.Verifier == nil {
		return v.fail(ctx, fault.KindConfiguration, "verify", errors.New("verifier is required"))
	}
	if v.opts.Source == "" || v.opts.Target == "" {
		return v.fail(ctx, fault.KindConfiguration, "verify", errors.New("source and target are required"))
	}
	v.opts.Source = filepath.Clean(v.opts.Source)
	v.opts.Target = filepath.Clean(v.opts.Target)

	v.Console.StartTransferOperation(ctx, log.TransferOperation{
		Mode:   v.Name(),
		Source: v.opts.Source,
		Target: v.opts.Target,
	})
	defer v.Console.EndTransferOperation(ctx)

	if err := v.transition(ctx, status.StageVerifying); err != nil {
		return err
	}
	res, err := v.Verifier.Verify(ctx, v.opts.Source, v.opts.Target)
	if err != nil {
		return v.fail(ctx, fault.KindIntegrity, "verify", err)
	}
	v.result = res
	if !res.Success {
		v.Console.Errorf("%d files, %d matching checksums", res.Total, res.Matching)
		return v.fail(ctx, fault.KindIntegrity, "verify", res.Err())
	}
	v.Console.Successf("%d files, %d matching checksums", res.Total, res.Matching)

	return v.transition(ctx, status.StageDone)
}
