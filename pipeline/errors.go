package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures.
type Kind int

const (
	// KindInput: the document cannot be opened or its pages cannot be read.
	KindInput Kind = iota + 1
	// KindGeometry: a declared zone is degenerate.
	KindGeometry
	// KindResource: an overlay asset could not be used.
	KindResource
	// KindExtraction: the payment schedule could not be computed.
	KindExtraction
	// KindWrite: the output cannot be produced or persisted.
	KindWrite
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindGeometry:
		return "geometry"
	case KindResource:
		return "resource"
	case KindExtraction:
		return "extraction"
	case KindWrite:
		return "write"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Fatal reports whether errors of this kind stop the run.
func (k Kind) Fatal() bool {
	return k == KindInput || k == KindGeometry || k == KindWrite
}

// Error is a failure of one pipeline operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain, or zero.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
