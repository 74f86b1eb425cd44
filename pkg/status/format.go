package status

import (
	"fmt"
)

// FileFormatter defines how progress and stage changes are rendered
type FileFormatter interface {
	// FormatProgress formats a progress message
	FormatProgress(current, total int) string

	// FormatTransition formats a stage change
	FormatTransition(from, to Stage) string

	// FormatError formats an error message
	FormatError(err error) string
}

// DefaultFileFormatter provides a default implementation of FileFormatter
type DefaultFileFormatter struct{}

// NewDefaultFileFormatter creates a new DefaultFileFormatter
func NewDefaultFileFormatter() *DefaultFileFormatter {
	return &DefaultFileFormatter{}
}

// FormatProgress formats a progress message with percentage
func (f *DefaultFileFormatter) FormatProgress(current, total int) string {
	var percentage float64
	if total == 0 {
		percentage = 0
		if current > 0 {
			percentage = 100
		}
	} else {
		percentage = float64(current) / float64(total) * 100
	}

	if current >= total {
		return fmt.Sprintf("✅ Progress: %d/%d (%.0f%%)", current, total, percentage)
	}
	return fmt.Sprintf("⏳ Progress: %d/%d (%.0f%%)", current, total, percentage)
}

// FormatTransition formats a stage change with an emoji for the target stage
func (f *DefaultFileFormatter) FormatTransition(from, to Stage) string {
	var symbol string
	switch to {
	case StageCopying:
		symbol = "📦"
	case StageVerifying:
		symbol = "🔍"
	case StageMeasuring:
		symbol = "📏"
	case StagePurging:
		symbol = "🗑️ "
	case StageRecording:
		symbol = "📝"
	case StageDone:
		symbol = "✅"
	case StageFailed:
		symbol = "❌"
	default:
		symbol = "•"
	}
	return fmt.Sprintf("%s %s -> %s", symbol, from, to)
}

// FormatError formats an error message with emoji
func (f *DefaultFileFormatter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("❌ Error: %v", err)
}
