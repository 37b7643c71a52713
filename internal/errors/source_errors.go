package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
)

// Kind classifies why a source failed to produce data.
type Kind int

const (
	// KindOther is any failure that could not be classified.
	KindOther Kind = iota
	// KindAPIShape means the upstream interface changed: a call, method or
	// field the source relies on no longer exists. Not transient.
	KindAPIShape
	// KindUnavailable means a dependency, permission or file is missing on
	// this system. Recoverable by waiting.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindAPIShape:
		return "api_shape"
	case KindUnavailable:
		return "unavailable"
	default:
		return "other"
	}
}

// SourceError is raised by a source at its own boundary so that callers never
// need to inspect message text.
type SourceError struct {
	Source string
	Kind   Kind
	Op     string
	Err    error
}

// Error implements the error interface
func (e *SourceError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// APIShape creates a SourceError of KindAPIShape.
func APIShape(source, op string, err error) *SourceError {
	return &SourceError{Source: source, Kind: KindAPIShape, Op: op, Err: err}
}

// Unavailable creates a SourceError of KindUnavailable.
func Unavailable(source, op string, err error) *SourceError {
	return &SourceError{Source: source, Kind: KindUnavailable, Op: op, Err: err}
}

// Other creates a SourceError of KindOther.
func Other(source, op string, err error) *SourceError {
	return &SourceError{Source: source, Kind: KindOther, Op: op, Err: err}
}

// Classify maps an error returned by a source to a Kind. Typed SourceErrors
// win; missing files, denied permissions and missing executables are treated
// as unavailable.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}

	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		return srcErr.Kind
	}

	switch {
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission),
		errors.Is(err, exec.ErrNotFound):
		return KindUnavailable
	}

	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return KindUnavailable
	}

	return KindOther
}

// Truncate shortens msg to at most max runes, marking the cut with an ellipsis.
func Truncate(msg string, max int) string {
	r := []rune(msg)
	if len(r) <= max {
		return msg
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
