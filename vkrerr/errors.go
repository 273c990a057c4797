// Package vkrerr holds the error Kind taxonomy shared across every core
// component (spec.md §7). Grounded on the teacher's utils/errors.go
// (fmt.Errorf + %w wrapping helpers) and threads/sab/layout.go's LayoutError
// (a Code-tagged error), merged into one typed Kind so callers can
// errors.Is/errors.As instead of string-matching a Code field.
package vkrerr

import "fmt"

// Kind classifies a core error per spec.md §7.
type Kind int

const (
	InvalidArgument Kind = iota
	OutOfNodes
	OutOfMemory
	Overflow
	Overlap
	UsageMismatch
	HandleInvalidGeneration
	DependencyCycle
	BackendFailure
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case OutOfNodes:
		return "OutOfNodes"
	case OutOfMemory:
		return "OutOfMemory"
	case Overflow:
		return "Overflow"
	case Overlap:
		return "Overlap"
	case UsageMismatch:
		return "UsageMismatch"
	case HandleInvalidGeneration:
		return "HandleInvalidGeneration"
	case DependencyCycle:
		return "DependencyCycle"
	case BackendFailure:
		return "BackendFailure"
	default:
		return "Unknown"
	}
}

// Error is a Kind-tagged error carrying a human message and optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so callers can
// do errors.Is(err, vkrerr.New(vkrerr.OutOfMemory, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an *Error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates an *Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error of the given kind that wraps cause.
func Wrap(kind Kind, cause error, msg string) error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Is reports whether err's chain contains an *Error of kind k.
func Is(err error, k Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == k {
				return true
			}
			err = e.Cause
			continue
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
