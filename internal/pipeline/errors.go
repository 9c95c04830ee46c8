package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure. Every error leaving this package is
// a *Error carrying one of these kinds. All of them are fatal: the run
// aborts rather than produce a partial multi-band product.
type Kind int

const (
	// ConfigError: no index selected, unsupported instrument, bad block size.
	ConfigError Kind = iota + 1
	// InputError: a required band is missing or band dimensions disagree.
	InputError
	// IOError: a read or write against a band stream failed.
	IOError
	// OutputError: an output stream could not be created.
	OutputError
	// MetadataError: representative band missing or malformed metadata.
	MetadataError
)

func (k Kind) String() string {
	switch k {
	case ConfigError:
		return "config error"
	case InputError:
		return "input error"
	case IOError:
		return "i/o error"
	case OutputError:
		return "output error"
	case MetadataError:
		return "metadata error"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a classified pipeline failure with enough context (band number,
// line offset, product) to diagnose without re-running.
type Error struct {
	Kind    Kind
	Op      string
	Product string // output product name, when relevant
	Band    int    // physical band number, 0 when not band-specific
	Line    int    // line offset, -1 when not line-specific
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Op)
	if e.Product != "" {
		msg += fmt.Sprintf(" (product %s)", e.Product)
	}
	if e.Band > 0 {
		msg += fmt.Sprintf(" (band %d)", e.Band)
	}
	if e.Line >= 0 {
		msg += fmt.Sprintf(" (line %d)", e.Line)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a pipeline error of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}

// failf builds a pipeline error with no band/line context.
func failf(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: fmt.Sprintf(format, args...), Line: -1, Err: err}
}
