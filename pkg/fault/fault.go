// Package fault classifies the failures a transfer or purge can end in and
// maps each class to a process exit status.
package fault

import (
	"gitlab.com/tozd/go/errors"
)

// Kind is the failure class of an error.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindCopy
	KindIntegrity
	KindDeletion
	KindAuditPersistence
	KindAuditInconsistency
	KindMeasurement
)

// Sentinels for errors.Is matching against a *Error of the same kind.
var (
	ErrConfiguration      = errors.Base("configuration error")
	ErrCopy               = errors.Base("copy error")
	ErrIntegrity          = errors.Base("integrity error")
	ErrDeletion           = errors.Base("deletion error")
	ErrAuditPersistence   = errors.Base("audit persistence error")
	ErrAuditInconsistency = errors.Base("audit inconsistency")
	ErrMeasurement        = errors.Base("measurement error")
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "ConfigurationError"
	case KindCopy:
		return "CopyError"
	case KindIntegrity:
		return "IntegrityError"
	case KindDeletion:
		return "DeletionError"
	case KindAuditPersistence:
		return "AuditPersistenceError"
	case KindAuditInconsistency:
		return "AuditInconsistencyError"
	case KindMeasurement:
		return "MeasurementError"
	default:
		return "UnknownError"
	}
}

// ExitCode is the process exit status for the kind. Zero is never returned.
func (k Kind) ExitCode() int {
	switch k {
	case KindConfiguration:
		return 2
	case KindCopy:
		return 3
	case KindIntegrity:
		return 4
	case KindDeletion:
		return 5
	case KindAuditPersistence:
		return 6
	case KindAuditInconsistency:
		return 7
	case KindMeasurement:
		return 8
	default:
		return 1
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindCopy:
		return ErrCopy
	case KindIntegrity:
		return ErrIntegrity
	case KindDeletion:
		return ErrDeletion
	case KindAuditPersistence:
		return ErrAuditPersistence
	case KindAuditInconsistency:
		return ErrAuditInconsistency
	case KindMeasurement:
		return ErrMeasurement
	default:
		return nil
	}
}

// Error is a classified failure. Op names the step that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + ": " + e.Op
	}
	return e.Kind.String() + ": " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// New classifies err under kind. A nil err still yields a non-nil *Error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf is New with a freshly created cause.
func Newf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// ExitCode maps err to a process exit status; nil maps to 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return KindOf(err).ExitCode()
}
