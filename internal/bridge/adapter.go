// Package bridge is the boundary between feed parsing and a host runtime.
//
// This package enables feedex to:
// - Expose ParseRSS and ParseAtom as total functions returning an Outcome
// - Sequence parsing, transcoding and sink construction for any sink
// - Render internal errors to tagged text only at the boundary
// - Convert panics anywhere in the pipeline into failures
package bridge

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gauthierbraillon/feedex/internal/feed"
	"github.com/gauthierbraillon/feedex/internal/sink/native"
	"github.com/gauthierbraillon/feedex/internal/transcode"
)

// Tag names the category of a Failure.
type Tag string

const (
	TagParse     Tag = "ParseFailure"
	TagTranscode Tag = "TranscodeFailure"
)

// Failure is the only error shape that leaves the bridge.
type Failure struct {
	Tag     Tag
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Tag, f.Message)
}

// Outcome holds either a host value or a Failure, never both.
type Outcome struct {
	Value any
	Err   *Failure
}

// OK reports whether the call succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLogger sets the logger used for per-call debug records.
func WithLogger(l *zap.Logger) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.log = l
		}
	}
}

// WithMaxDepth bounds collection nesting during transcoding.
func WithMaxDepth(n int) AdapterOption {
	return func(a *Adapter) {
		a.maxDepth = n
	}
}

// Adapter runs feed text through parser, transcoder and sink.
// It holds no mutable state and is safe for concurrent use.
type Adapter struct {
	log      *zap.Logger
	maxDepth int
}

// NewAdapter creates an Adapter. The zero configuration logs nothing and
// uses transcode.DefaultMaxDepth.
func NewAdapter(opts ...AdapterOption) *Adapter {
	a := &Adapter{
		log:      zap.NewNop(),
		maxDepth: transcode.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var defaultAdapter = NewAdapter()

// ParseRSS parses RSS text with the default adapter.
func ParseRSS(text string) Outcome {
	return defaultAdapter.ParseRSS(text)
}

// ParseAtom parses Atom text with the default adapter.
func ParseAtom(text string) Outcome {
	return defaultAdapter.ParseAtom(text)
}

// ParseRSS parses RSS text into host-native values.
func (a *Adapter) ParseRSS(text string) Outcome {
	return a.Parse(feed.KindRSS, text)
}

// ParseAtom parses Atom text into host-native values.
func (a *Adapter) ParseAtom(text string) Outcome {
	return a.Parse(feed.KindAtom, text)
}

// Parse parses text of the given kind into host-native values.
// feed.KindUnknown detects the kind first.
func (a *Adapter) Parse(kind feed.Kind, text string) Outcome {
	v, fail := Convert[any](a, kind, text, native.New())
	if fail != nil {
		return Outcome{Err: fail}
	}
	return Outcome{Value: v}
}

// Convert parses text and transcodes the document into sink.
func Convert[T any](a *Adapter, kind feed.Kind, text string, sink transcode.Sink[T]) (result T, fail *Failure) {
	id := uuid.NewString()
	log := a.log.With(zap.String("call", id), zap.String("kind", string(kind)))
	log.Debug("convert started", zap.Int("bytes", len(text)))

	stage := TagParse
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			fail = &Failure{Tag: stage, Message: fmt.Sprintf("internal panic: %v", r)}
		}
		if fail != nil {
			log.Debug("convert failed", zap.String("tag", string(fail.Tag)), zap.String("message", fail.Message))
			return
		}
		log.Debug("convert finished")
	}()

	doc, err := feed.Parse(kind, text)
	if err != nil {
		var zero T
		return zero, feedFailure(err)
	}

	stage = TagTranscode
	out, err := transcode.Transcode(doc, sink, transcode.WithMaxDepth(a.maxDepth))
	if err != nil {
		var zero T
		return zero, &Failure{Tag: TagTranscode, Message: err.Error()}
	}
	return out, nil
}

// feedFailure tags a feed package error. Grammar errors are parse failures;
// a parsed document that cannot be converted into a value is a transcode
// failure.
func feedFailure(err error) *Failure {
	var perr *feed.ParseError
	if errors.As(err, &perr) {
		if perr.Origin == feed.OriginEncode {
			return &Failure{Tag: TagTranscode, Message: perr.Message}
		}
		return &Failure{Tag: TagParse, Message: perr.Message}
	}
	return &Failure{Tag: TagParse, Message: err.Error()}
}
