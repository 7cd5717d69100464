// Package jsonsink renders a transcoded document as JSON text through a
// json-iterator stream, without building an intermediate tree.
//
// The document is buffered in the stream and reaches the writer only when
// Result succeeds, so a failed transcoding leaves the writer untouched.
package jsonsink

import (
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/gauthierbraillon/feedex/internal/transcode"
	"github.com/gauthierbraillon/feedex/internal/value"
)

const initialBufferSize = 4096

var errIncomplete = errors.New("document is incomplete")

var compact = jsoniter.Config{EscapeHTML: true}.Froze()

// Option configures a Sink.
type Option func(*Sink)

// WithIndent pretty-prints with n spaces per level. Zero keeps the output
// compact.
func WithIndent(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.indent = n
		}
	}
}

type level struct {
	isMap bool
	size  int
	count int
}

// Sink writes JSON to a writer. Result returns the number of bytes written.
type Sink struct {
	out      io.Writer
	stream   *jsoniter.Stream
	indent   int
	stack    []level
	afterKey bool
	done     bool
}

var _ transcode.Sink[int] = (*Sink)(nil)

// New returns a Sink writing to w.
func New(w io.Writer, opts ...Option) *Sink {
	s := &Sink{out: w}
	for _, opt := range opts {
		opt(s)
	}
	cfg := compact
	if s.indent > 0 {
		cfg = jsoniter.Config{EscapeHTML: true, IndentionStep: s.indent}.Froze()
	}
	s.stream = jsoniter.NewStream(cfg, nil, initialBufferSize)
	return s
}

// prefix writes the separator owed before a value.
func (s *Sink) prefix() error {
	if s.afterKey {
		s.afterKey = false
		return nil
	}
	if len(s.stack) == 0 {
		if s.done {
			return errors.New("value emitted after root was complete")
		}
		return nil
	}
	top := &s.stack[len(s.stack)-1]
	if top.isMap {
		return errors.New("map value emitted without a key")
	}
	return s.next(top)
}

// next counts one more member of top, writing a comma after the first.
func (s *Sink) next(top *level) error {
	if top.count >= top.size {
		return fmt.Errorf("collection declared %d members, got more", top.size)
	}
	if top.count > 0 {
		s.stream.WriteMore()
	}
	top.count++
	return nil
}

func (s *Sink) scalar(write func()) error {
	if err := s.prefix(); err != nil {
		return err
	}
	write()
	if len(s.stack) == 0 {
		s.done = true
	}
	return s.stream.Error
}

func (s *Sink) Null() error { return s.scalar(s.stream.WriteNil) }

func (s *Sink) Bool(b bool) error {
	return s.scalar(func() { s.stream.WriteBool(b) })
}

func (s *Sink) Number(n value.Number) error {
	if !n.IsFinite() {
		return fmt.Errorf("%w: JSON has no literal for %s", transcode.ErrUnsupportedNumber, n)
	}
	switch n.Kind() {
	case value.IntNumber:
		i, _ := n.Int64()
		return s.scalar(func() { s.stream.WriteInt64(i) })
	case value.UintNumber:
		u, _ := n.Uint64()
		return s.scalar(func() { s.stream.WriteUint64(u) })
	}
	return s.scalar(func() { s.writeFloat(n.Float64()) })
}

// writeFloat keeps a fraction or exponent so the value reads back as a float.
func (s *Sink) writeFloat(f float64) {
	start := s.stream.Buffered()
	s.stream.WriteFloat64(f)
	for _, c := range s.stream.Buffer()[start:] {
		if c == '.' || c == 'e' {
			return
		}
	}
	s.stream.WriteRaw(".0")
}

func (s *Sink) String(str string) error {
	return s.scalar(func() { s.stream.WriteStringWithHTMLEscaped(str) })
}

func (s *Sink) BeginSequence(n int) error {
	if err := s.prefix(); err != nil {
		return err
	}
	s.stack = append(s.stack, level{size: n})
	if n == 0 {
		s.stream.WriteEmptyArray()
		return nil
	}
	s.stream.WriteArrayStart()
	return nil
}

func (s *Sink) EndSequence() error { return s.end(false) }

func (s *Sink) BeginMap(n int) error {
	if err := s.prefix(); err != nil {
		return err
	}
	s.stack = append(s.stack, level{isMap: true, size: n})
	if n == 0 {
		s.stream.WriteEmptyObject()
		return nil
	}
	s.stream.WriteObjectStart()
	return nil
}

func (s *Sink) Key(k string) error {
	if len(s.stack) == 0 || !s.stack[len(s.stack)-1].isMap {
		return fmt.Errorf("key %q outside of a map", k)
	}
	if s.afterKey {
		return fmt.Errorf("key %q follows a key without a value", k)
	}
	if err := s.next(&s.stack[len(s.stack)-1]); err != nil {
		return err
	}
	s.stream.WriteStringWithHTMLEscaped(k)
	if s.indent > 0 {
		s.stream.WriteRaw(": ")
	} else {
		s.stream.WriteRaw(":")
	}
	s.afterKey = true
	return nil
}

func (s *Sink) EndMap() error { return s.end(true) }

func (s *Sink) end(isMap bool) error {
	if len(s.stack) == 0 || s.stack[len(s.stack)-1].isMap != isMap || s.afterKey {
		return errors.New("collection end does not match its begin")
	}
	top := s.stack[len(s.stack)-1]
	if top.count != top.size {
		return fmt.Errorf("collection declared %d members, got %d", top.size, top.count)
	}
	s.stack = s.stack[:len(s.stack)-1]
	if top.size > 0 {
		if isMap {
			s.stream.WriteObjectEnd()
		} else {
			s.stream.WriteArrayEnd()
		}
	}
	if len(s.stack) == 0 {
		s.done = true
	}
	return s.stream.Error
}

// Result writes the finished document and returns the number of bytes
// written. Nothing is written when the document is incomplete.
func (s *Sink) Result() (int, error) {
	if !s.done || len(s.stack) > 0 {
		return 0, errIncomplete
	}
	if s.stream.Error != nil {
		return 0, s.stream.Error
	}
	if s.indent > 0 {
		s.stream.WriteRaw("\n")
	}
	n, err := s.out.Write(s.stream.Buffer())
	if err != nil {
		return n, fmt.Errorf("failed to write JSON output: %w", err)
	}
	return n, nil
}
