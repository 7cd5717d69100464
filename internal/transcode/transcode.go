// Package transcode converts a hierarchical value into another representation
// through an incremental Sink.
//
// This package enables feedex to:
// - Walk a parsed document once, depth first, preserving order and scalar types
// - Target any representation (Go values, JSON text, YAML nodes, terminal outline)
// - Refuse pathological nesting with a depth guard instead of exhausting the stack
package transcode

import (
	"fmt"
	"strconv"

	"github.com/gauthierbraillon/feedex/internal/value"
)

// DefaultMaxDepth is the collection nesting allowed when no option is given.
const DefaultMaxDepth = 512

// Sink receives a value as a stream of scalar and collection events.
// A sink is used for a single transcoding and then discarded.
type Sink[T any] interface {
	Null() error
	Bool(b bool) error
	Number(n value.Number) error
	String(s string) error
	// BeginSequence opens a sequence of n items.
	BeginSequence(n int) error
	EndSequence() error
	// BeginMap opens a map of n entries; each entry is a Key call followed
	// by exactly one value.
	BeginMap(n int) error
	Key(k string) error
	EndMap() error
	// Result returns the finished value once the root has been emitted.
	Result() (T, error)
}

// Option configures a transcoding.
type Option func(*options)

type options struct {
	maxDepth int
}

// WithMaxDepth bounds collection nesting. Values below 1 select DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		o.maxDepth = n
	}
}

// Transcode emits v into sink and returns the sink's result. Any failure
// aborts the walk; no partial result is returned.
func Transcode[T any](v value.Value, sink Sink[T], opts ...Option) (T, error) {
	o := options{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxDepth < 1 {
		o.maxDepth = DefaultMaxDepth
	}

	w := walker[T]{sink: sink, maxDepth: o.maxDepth}
	var zero T
	if err := w.walk(v, 0); err != nil {
		return zero, err
	}
	res, err := sink.Result()
	if err != nil {
		return zero, sinkError(nil, err)
	}
	return res, nil
}

type walker[T any] struct {
	sink     Sink[T]
	maxDepth int
	path     []string
}

func (w *walker[T]) walk(v value.Value, depth int) error {
	switch v.Kind() {
	case value.KindNull:
		return w.check(w.sink.Null())
	case value.KindBool:
		return w.check(w.sink.Bool(v.Bool()))
	case value.KindNumber:
		return w.check(w.sink.Number(v.Number()))
	case value.KindString:
		return w.check(w.sink.String(v.Text()))
	case value.KindSequence:
		if err := w.enter(depth); err != nil {
			return err
		}
		if err := w.check(w.sink.BeginSequence(v.Len())); err != nil {
			return err
		}
		for i := 0; i < v.Len(); i++ {
			w.path = append(w.path, strconv.Itoa(i))
			if err := w.walk(v.Index(i), depth+1); err != nil {
				return err
			}
			w.path = w.path[:len(w.path)-1]
		}
		return w.check(w.sink.EndSequence())
	case value.KindMap:
		if err := w.enter(depth); err != nil {
			return err
		}
		if err := w.check(w.sink.BeginMap(v.Len())); err != nil {
			return err
		}
		for i := 0; i < v.Len(); i++ {
			e := v.EntryAt(i)
			w.path = append(w.path, e.Key)
			if err := w.check(w.sink.Key(e.Key)); err != nil {
				return err
			}
			if err := w.walk(e.Value, depth+1); err != nil {
				return err
			}
			w.path = w.path[:len(w.path)-1]
		}
		return w.check(w.sink.EndMap())
	}
	return &Error{
		Kind:   KindSink,
		Path:   append([]string(nil), w.path...),
		Detail: fmt.Sprintf("unknown value kind %s", v.Kind()),
	}
}

// enter guards a collection opened at depth; its children live at depth+1.
func (w *walker[T]) enter(depth int) error {
	if depth+1 > w.maxDepth {
		return &Error{
			Kind:   KindTooDeep,
			Path:   append([]string(nil), w.path...),
			Detail: fmt.Sprintf("nesting exceeds maximum depth %d", w.maxDepth),
		}
	}
	return nil
}

func (w *walker[T]) check(err error) error {
	if err != nil {
		return sinkError(w.path, err)
	}
	return nil
}
