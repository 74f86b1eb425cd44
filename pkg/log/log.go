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

package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// 🎨 Display configuration
const (
	fileIndent  = 4  // spaces to indent file entries
	nameWidth   = 35 // Base width for filename
	typeWidth   = 10 // Width for entry type
	statusWidth = 15 // Width for status text
)

// 🎯 FileOperation is one entry handled by the copier or verifier
type FileOperation struct {
	Path      string // Path relative to the tree root
	Type      string // Entry type (file/dir/symlink/special)
	Status    string // Operation status
	Size      int64  // Bytes, zero for non-files
	IsNew     bool   // Entry did not exist in the target
	IsSkipped bool   // Entry was not copied
	IsFailed  bool   // Entry failed (copy error or checksum mismatch)
}

// 📦 TransferOperation describes the invocation being run
type TransferOperation struct {
	Mode   string // transfer, purge or verify
	Source string // Source directory
	Target string // Target directory
	PI     string // Principal investigator
}

// 🎯 Logger writes operator output to a console and mirrors it into zerolog
type Logger struct {
	zlog      zerolog.Logger
	console   io.Writer
	verbose   bool
	mu        sync.Mutex
	currentOp *TransferOperation
	files     int
}

// Option configures a Logger
type Option func(*Logger)

// WithVerbose prints every file operation, not only failures.
func WithVerbose(verbose bool) Option {
	return func(l *Logger) { l.verbose = verbose }
}

// WithZerolog mirrors console output into zlog instead of stderr.
func WithZerolog(zlog zerolog.Logger) Option {
	return func(l *Logger) { l.zlog = zlog }
}

// 🏭 New creates a new logger
func New(console io.Writer, level zerolog.Level, opts ...Option) *Logger {
	l := &Logger{
		zlog:    zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = os.Stderr })).With().Timestamp().Logger().Level(level),
		console: console,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		panic("logger not found in context")
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// Verbose reports whether per-file output is enabled.
func (l *Logger) Verbose() bool {
	return l.verbose
}

// 📝 formatFileOperation formats a file operation for display
func (l *Logger) formatFileOperation(op FileOperation) string {
	var symbol rune
	var symbolColor color.Attribute
	switch {
	case op.IsFailed:
		symbol = '✗'
		symbolColor = color.FgRed
	case op.IsSkipped:
		symbol = '-'
		symbolColor = color.FgYellow
	case op.IsNew:
		symbol = '✓'
		symbolColor = color.FgGreen
	default:
		symbol = '⟳'
		symbolColor = color.FgBlue
	}

	var typeColor color.Attribute
	switch op.Type {
	case "file":
		typeColor = color.FgCyan
	case "symlink":
		typeColor = color.FgMagenta
	default:
		typeColor = color.FgYellow
	}

	size := ""
	if op.Type == "file" {
		size = humanize.Bytes(uint64(op.Size))
	}

	return fmt.Sprintf("%s%s %s %s %s %s",
		fmt.Sprintf("%*s", fileIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, op.Path),
		color.New(typeColor).Sprint(fmt.Sprintf("%-*s", typeWidth, op.Type)),
		fmt.Sprintf("%-*s", statusWidth, op.Status),
		size)
}

// 📝 LogFileOperation logs a file operation. Failures always reach the
// console, everything else only in verbose mode.
func (l *Logger) LogFileOperation(ctx context.Context, op FileOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.files++

	if l.verbose || op.IsFailed {
		fmt.Fprintln(l.console, l.formatFileOperation(op))
	}

	ev := l.zlog.Debug()
	if op.IsFailed {
		ev = l.zlog.Warn()
	}
	ev.Str("file", op.Path).
		Str("type", op.Type).
		Str("status", op.Status).
		Int64("size", op.Size).
		Bool("is_new", op.IsNew).
		Bool("is_skipped", op.IsSkipped).
		Bool("is_failed", op.IsFailed).
		Msg("file operation")
}

// 📝 StartTransferOperation prints the invocation header
func (l *Logger) StartTransferOperation(ctx context.Context, op TransferOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.currentOp = &op
	l.files = 0

	fmt.Fprintf(l.console, "[%s %s]\n",
		op.Mode,
		color.New(color.FgCyan).Sprint(op.Source))

	if op.Target != "" {
		fmt.Fprintf(l.console, "%s %s %s %s\n",
			color.New(color.FgMagenta).Sprint("◆"),
			color.New(color.Bold).Sprint(op.Target),
			color.New(color.Faint).Sprint("•"),
			color.New(color.FgYellow).Sprint(op.PI))
	}

	l.zlog.Info().
		Str("mode", op.Mode).
		Str("source", op.Source).
		Str("target", op.Target).
		Str("pi", op.PI).
		Msg("starting transfer operation")
}

// 📝 EndTransferOperation closes the current invocation
func (l *Logger) EndTransferOperation(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentOp == nil {
		return
	}

	l.zlog.Info().
		Str("mode", l.currentOp.Mode).
		Str("source", l.currentOp.Source).
		Int("files", l.files).
		Msg("transfer operation complete")

	l.currentOp = nil
	l.files = 0
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("relocate")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// 📝 Successf logs a formatted success message
func (l *Logger) Successf(format string, args ...interface{}) {
	l.Success(fmt.Sprintf(format, args...))
}
