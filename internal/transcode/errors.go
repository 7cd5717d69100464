package transcode

import (
	"errors"
	"strings"
)

// ErrUnsupportedNumber is wrapped by sinks whose numeric type cannot hold a
// Number exactly.
var ErrUnsupportedNumber = errors.New("unsupported number")

// Kind categorizes a transcoding failure.
type Kind string

const (
	KindUnsupportedNumber Kind = "unsupported_number"
	KindTooDeep           Kind = "too_deep"
	KindSink              Kind = "sink"
)

// Error is the single terminal error of a failed transcoding.
type Error struct {
	Kind   Kind
	Path   []string
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(string(e.Kind))
	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

// Unwrap returns the underlying sink error, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same Kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is.
var (
	ErrTooDeep     = &Error{Kind: KindTooDeep}
	ErrUnsupported = &Error{Kind: KindUnsupportedNumber}
	ErrSink        = &Error{Kind: KindSink}
)

func sinkError(path []string, err error) *Error {
	kind := KindSink
	if errors.Is(err, ErrUnsupportedNumber) {
		kind = KindUnsupportedNumber
	}
	return &Error{
		Kind:  kind,
		Path:  append([]string(nil), path...),
		Cause: err,
	}
}
