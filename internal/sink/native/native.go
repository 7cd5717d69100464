// Package native builds host-native Go values from a transcoded document and
// reads them back.
//
// The host representation mirrors what a dynamically typed runtime exposes:
// nil, bool, int64, float64, string, []any and map[string]any. Integers
// outside int64 and non-finite floats have no host form and are rejected.
package native

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/gauthierbraillon/feedex/internal/transcode"
	"github.com/gauthierbraillon/feedex/internal/value"
)

var (
	errNoRoot        = errors.New("no value emitted")
	errMultipleRoots = errors.New("value emitted after root was complete")
	errMissingKey    = errors.New("map value emitted without a key")
	errUnbalanced    = errors.New("collection end does not match its begin")
)

type frame struct {
	isMap bool
	seq   []any
	m     map[string]any
	key   string
	keyed bool
}

// Sink assembles a host value. Use New for each transcoding.
type Sink struct {
	stack []*frame
	root  any
	done  bool
}

var _ transcode.Sink[any] = (*Sink)(nil)

// New returns an empty Sink.
func New() *Sink {
	return &Sink{}
}

func (s *Sink) emit(v any) error {
	if len(s.stack) == 0 {
		if s.done {
			return errMultipleRoots
		}
		s.root, s.done = v, true
		return nil
	}
	top := s.stack[len(s.stack)-1]
	if !top.isMap {
		top.seq = append(top.seq, v)
		return nil
	}
	if !top.keyed {
		return errMissingKey
	}
	top.m[top.key] = v
	top.keyed = false
	return nil
}

func (s *Sink) Null() error { return s.emit(nil) }

func (s *Sink) Bool(b bool) error { return s.emit(b) }

func (s *Sink) Number(n value.Number) error {
	switch n.Kind() {
	case value.IntNumber:
		i, _ := n.Int64()
		return s.emit(i)
	case value.UintNumber:
		return fmt.Errorf("%w: %s exceeds int64", transcode.ErrUnsupportedNumber, n)
	}
	if !n.IsFinite() {
		return fmt.Errorf("%w: %s has no host representation", transcode.ErrUnsupportedNumber, n)
	}
	return s.emit(n.Float64())
}

func (s *Sink) String(str string) error { return s.emit(str) }

func (s *Sink) BeginSequence(n int) error {
	s.stack = append(s.stack, &frame{seq: make([]any, 0, n)})
	return nil
}

func (s *Sink) EndSequence() error {
	return s.pop(false)
}

func (s *Sink) BeginMap(n int) error {
	s.stack = append(s.stack, &frame{isMap: true, m: make(map[string]any, n)})
	return nil
}

func (s *Sink) Key(k string) error {
	if len(s.stack) == 0 || !s.stack[len(s.stack)-1].isMap {
		return fmt.Errorf("key %q outside of a map", k)
	}
	top := s.stack[len(s.stack)-1]
	top.key, top.keyed = k, true
	return nil
}

func (s *Sink) EndMap() error {
	return s.pop(true)
}

func (s *Sink) pop(isMap bool) error {
	if len(s.stack) == 0 || s.stack[len(s.stack)-1].isMap != isMap {
		return errUnbalanced
	}
	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	if isMap {
		return s.emit(top.m)
	}
	return s.emit(top.seq)
}

// Result returns the assembled host value.
func (s *Sink) Result() (any, error) {
	if len(s.stack) > 0 {
		return nil, errUnbalanced
	}
	if !s.done {
		return nil, errNoRoot
	}
	return s.root, nil
}

// ToValue reads a host value back into a document. Maps come back with
// sorted keys since map[string]any carries no order.
func ToValue(v any) (value.Value, error) {
	switch x := v.(type) {
	case nil:
		return value.Null(), nil
	case bool:
		return value.FromBool(x), nil
	case int:
		return value.FromInt(int64(x)), nil
	case int64:
		return value.FromInt(x), nil
	case int32:
		return value.FromInt(int64(x)), nil
	case uint64:
		return value.FromUint(x), nil
	case float64:
		return value.FromFloat(x), nil
	case float32:
		return value.FromFloat(float64(x)), nil
	case string:
		return value.FromString(x), nil
	case json.Number:
		return numberFromJSON(x)
	case []any:
		items := make([]value.Value, len(x))
		for i, item := range x {
			iv, err := ToValue(item)
			if err != nil {
				return value.Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = iv
		}
		return value.FromSequence(items...), nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]value.Entry, 0, len(keys))
		for _, k := range keys {
			iv, err := ToValue(x[k])
			if err != nil {
				return value.Value{}, fmt.Errorf("%s: %w", k, err)
			}
			entries = append(entries, value.Entry{Key: k, Value: iv})
		}
		return value.FromMap(entries...)
	}
	return value.FromGo(v)
}

func numberFromJSON(n json.Number) (value.Value, error) {
	if i, err := n.Int64(); err == nil {
		return value.FromInt(i), nil
	}
	if u, err := strconv.ParseUint(string(n), 10, 64); err == nil {
		return value.FromUint(u), nil
	}
	f, err := n.Float64()
	if err != nil {
		return value.Value{}, fmt.Errorf("invalid number %q: %w", n, err)
	}
	if math.IsInf(f, 0) {
		return value.Value{}, fmt.Errorf("number %q out of range", n)
	}
	return value.FromFloat(f), nil
}
