package status

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 📊 Stage is a state of the transfer/purge machine
type Stage int

const (
	StageStart Stage = iota
	StageCopying
	StageVerifying
	StageMeasuring
	StagePurging
	StageRecording
	StageDone
	StageFailed
)

// String returns the upper-case stage name
func (s Stage) String() string {
	switch s {
	case StageStart:
		return "START"
	case StageCopying:
		return "COPYING"
	case StageVerifying:
		return "VERIFYING"
	case StageMeasuring:
		return "MEASURING"
	case StagePurging:
		return "PURGING"
	case StageRecording:
		return "RECORDING"
	case StageDone:
		return "DONE"
	case StageFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no transition leaves s.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

var allowed = map[Stage][]Stage{
	StageStart:     {StageCopying, StageVerifying, StageMeasuring, StageFailed},
	StageCopying:   {StageVerifying, StageFailed},
	StageVerifying: {StageRecording, StageDone, StageFailed},
	StageMeasuring: {StagePurging, StageFailed},
	StagePurging:   {StageRecording, StageDone, StageFailed},
	StageRecording: {StagePurging, StageDone, StageFailed},
}

// CanTransition reports whether the machine allows from -> to.
func CanTransition(from, to Stage) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// 📄 Transition is one recorded stage change
type Transition struct {
	From Stage
	To   Stage
	At   time.Time
	Err  error // set when To is StageFailed
}

// 📈 Reporter receives progress for a long running walk
type Reporter interface {
	StartOperation(ctx context.Context, name string, total int)
	UpdateProgress(ctx context.Context, processed int)
	FinishOperation(ctx context.Context)
}

// Discard is a Reporter that drops everything.
var Discard Reporter = discard{}

type discard struct{}

func (discard) StartOperation(context.Context, string, int) {}
func (discard) UpdateProgress(context.Context, int)         {}
func (discard) FinishOperation(context.Context)             {}

// 🔧 Tracker owns the stage machine of one invocation and implements Reporter
type Tracker struct {
	logger    *zerolog.Logger
	formatter FileFormatter
	bar       io.Writer // progress bar output, nil disables the bar

	mu      sync.Mutex
	stage   Stage
	history []Transition

	op        string
	total     int
	processed int
	printer   *pterm.ProgressbarPrinter
}

// TrackerOption configures a Tracker
type TrackerOption func(*Tracker)

// WithProgressBar renders a pterm progress bar to w for every operation.
func WithProgressBar(w io.Writer) TrackerOption {
	return func(t *Tracker) { t.bar = w }
}

// WithFormatter replaces the default formatter.
func WithFormatter(f FileFormatter) TrackerOption {
	return func(t *Tracker) { t.formatter = f }
}

// 🏭 NewTracker creates a tracker positioned at StageStart
func NewTracker(logger *zerolog.Logger, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		logger:    logger,
		formatter: NewDefaultFileFormatter(),
		stage:     StageStart,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Stage returns the current stage.
func (t *Tracker) Stage() Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stage
}

// History returns a copy of every transition taken so far.
func (t *Tracker) History() []Transition {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Transition, len(t.history))
	copy(out, t.history)
	return out
}

// 🔄 Transition moves the machine to the next stage
func (t *Tracker) Transition(ctx context.Context, to Stage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !CanTransition(t.stage, to) {
		return errors.Errorf("invalid stage transition %s -> %s", t.stage, to)
	}
	t.record(to, nil)
	return nil
}

// ❌ Fail moves the machine to StageFailed from any non-terminal stage.
// Failing an already terminal machine is a no-op.
func (t *Tracker) Fail(ctx context.Context, cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stage.Terminal() {
		return
	}
	t.record(StageFailed, cause)
}

func (t *Tracker) record(to Stage, cause error) {
	tr := Transition{From: t.stage, To: to, At: time.Now().UTC(), Err: cause}
	t.history = append(t.history, tr)
	t.stage = to

	ev := t.logger.Info()
	if cause != nil {
		ev = t.logger.Error().Err(cause)
	}
	ev.Str("from", tr.From.String()).Str("to", tr.To.String()).Msg(t.formatter.FormatTransition(tr.From, tr.To))
}

// Reporter implementation

func (t *Tracker) StartOperation(ctx context.Context, name string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.op = name
	t.total = total
	t.processed = 0
	t.logger.Debug().Str("operation", name).Int("total", total).Msg(t.formatter.FormatProgress(0, total))

	if t.bar != nil && total > 0 {
		printer, err := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle(name).
			WithWriter(t.bar).
			Start()
		if err != nil {
			t.logger.Debug().Err(err).Msg("starting progress bar")
			return
		}
		t.printer = printer
	}
}

func (t *Tracker) UpdateProgress(ctx context.Context, processed int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.printer != nil && processed > t.processed {
		t.printer.Add(processed - t.processed)
	}
	t.processed = processed
	t.logger.Trace().
		Str("operation", t.op).
		Int("processed", processed).
		Int("total", t.total).
		Msg(t.formatter.FormatProgress(processed, t.total))
}

func (t *Tracker) FinishOperation(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.printer != nil {
		_, _ = t.printer.Stop()
		t.printer = nil
	}
	t.logger.Debug().
		Str("operation", t.op).
		Int("processed", t.processed).
		Int("total", t.total).
		Msg(t.formatter.FormatProgress(t.processed, t.total))
}
