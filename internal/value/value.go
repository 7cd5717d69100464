// Package value defines the hierarchical document model produced by the feed
// parsers and consumed by the transcoder.
//
// This package enables feedex to:
// - Represent a parsed feed as a self-describing tree (null, bool, number, string, sequence, map)
// - Keep map entries in document order with unique keys
// - Carry integers exactly instead of routing them through float64
package value

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrDuplicateKey is returned when a map is built with the same key twice.
var ErrDuplicateKey = errors.New("duplicate map key")

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// NumberKind identifies the representation of a Number.
type NumberKind uint8

const (
	IntNumber NumberKind = iota
	UintNumber
	FloatNumber
)

// Number is an exact integer or a float64.
// UintNumber is only used for values above math.MaxInt64.
type Number struct {
	kind NumberKind
	i    int64
	u    uint64
	f    float64
}

// Int returns an integer Number.
func Int(i int64) Number {
	return Number{kind: IntNumber, i: i}
}

// Uint returns an unsigned integer Number, folded into IntNumber when it fits.
func Uint(u uint64) Number {
	if u <= math.MaxInt64 {
		return Int(int64(u))
	}
	return Number{kind: UintNumber, u: u}
}

// Float returns a floating point Number.
func Float(f float64) Number {
	return Number{kind: FloatNumber, f: f}
}

// Kind returns the representation of n.
func (n Number) Kind() NumberKind { return n.kind }

// Int64 returns n as an int64 when it is an integer in int64 range.
func (n Number) Int64() (int64, bool) {
	if n.kind == IntNumber {
		return n.i, true
	}
	return 0, false
}

// Uint64 returns n as a uint64 when it is a non-negative integer.
func (n Number) Uint64() (uint64, bool) {
	switch n.kind {
	case IntNumber:
		if n.i < 0 {
			return 0, false
		}
		return uint64(n.i), true
	case UintNumber:
		return n.u, true
	}
	return 0, false
}

// Float64 returns n converted to float64. Large integers may round.
func (n Number) Float64() float64 {
	switch n.kind {
	case IntNumber:
		return float64(n.i)
	case UintNumber:
		return float64(n.u)
	}
	return n.f
}

// IsFinite reports whether n is neither NaN nor an infinity.
func (n Number) IsFinite() bool {
	if n.kind != FloatNumber {
		return true
	}
	return !math.IsNaN(n.f) && !math.IsInf(n.f, 0)
}

// String formats n with the shortest exact representation.
func (n Number) String() string {
	switch n.kind {
	case IntNumber:
		return strconv.FormatInt(n.i, 10)
	case UintNumber:
		return strconv.FormatUint(n.u, 10)
	}
	return strconv.FormatFloat(n.f, 'g', -1, 64)
}

// Equal reports whether n and m have the same representation and value.
// NaN is equal to NaN so that trees containing it compare as identical.
func (n Number) Equal(m Number) bool {
	if n.kind != m.kind {
		return false
	}
	switch n.kind {
	case IntNumber:
		return n.i == m.i
	case UintNumber:
		return n.u == m.u
	}
	if math.IsNaN(n.f) && math.IsNaN(m.f) {
		return true
	}
	return n.f == m.f
}

// Entry is a single key/value pair of a map.
type Entry struct {
	Key   string
	Value Value
}

// Value is an immutable hierarchical document node. The zero Value is null.
type Value struct {
	kind    Kind
	b       bool
	n       Number
	s       string
	items   []Value
	entries []Entry
}

// Null returns the null value.
func Null() Value { return Value{} }

// FromBool returns a boolean value.
func FromBool(b bool) Value { return Value{kind: KindBool, b: b} }

// FromNumber returns a numeric value.
func FromNumber(n Number) Value { return Value{kind: KindNumber, n: n} }

// FromInt returns an integer value.
func FromInt(i int64) Value { return FromNumber(Int(i)) }

// FromUint returns an unsigned integer value.
func FromUint(u uint64) Value { return FromNumber(Uint(u)) }

// FromFloat returns a floating point value.
func FromFloat(f float64) Value { return FromNumber(Float(f)) }

// FromString returns a string value.
func FromString(s string) Value { return Value{kind: KindString, s: s} }

// FromSequence returns a sequence holding a copy of items.
func FromSequence(items ...Value) Value {
	return Value{kind: KindSequence, items: append([]Value{}, items...)}
}

// FromMap returns a map holding a copy of entries in the given order.
func FromMap(entries ...Entry) (Value, error) {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.Key]; dup {
			return Value{}, fmt.Errorf("%w: %q", ErrDuplicateKey, e.Key)
		}
		seen[e.Key] = struct{}{}
	}
	return Value{kind: KindMap, entries: append([]Entry{}, entries...)}, nil
}

// MustMap is like FromMap but panics on duplicate keys. Intended for literals.
func MustMap(entries ...Entry) Value {
	v, err := FromMap(entries...)
	if err != nil {
		panic(err)
	}
	return v
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean payload; false for other kinds.
func (v Value) Bool() bool { return v.b }

// Number returns the numeric payload; zero for other kinds.
func (v Value) Number() Number { return v.n }

// Text returns the string payload; empty for other kinds.
func (v Value) Text() string { return v.s }

// Len returns the number of items of a sequence or entries of a map.
func (v Value) Len() int {
	switch v.kind {
	case KindSequence:
		return len(v.items)
	case KindMap:
		return len(v.entries)
	}
	return 0
}

// Index returns the i-th item of a sequence.
func (v Value) Index(i int) Value { return v.items[i] }

// EntryAt returns the i-th entry of a map.
func (v Value) EntryAt(i int) Entry { return v.entries[i] }

// Items returns a copy of the sequence items.
func (v Value) Items() []Value { return append([]Value(nil), v.items...) }

// Entries returns a copy of the map entries in order.
func (v Value) Entries() []Entry { return append([]Entry(nil), v.entries...) }

// Keys returns the map keys in order.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.entries))
	for _, e := range v.entries {
		keys = append(keys, e.Key)
	}
	return keys
}

// Get looks up key in a map.
func (v Value) Get(key string) (Value, bool) {
	for _, e := range v.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Lookup follows a path of map keys and decimal sequence indexes.
func (v Value) Lookup(path ...string) (Value, bool) {
	cur := v
	for _, p := range path {
		switch cur.kind {
		case KindMap:
			next, ok := cur.Get(p)
			if !ok {
				return Value{}, false
			}
			cur = next
		case KindSequence:
			i, err := strconv.Atoi(p)
			if err != nil || i < 0 || i >= len(cur.items) {
				return Value{}, false
			}
			cur = cur.items[i]
		default:
			return Value{}, false
		}
	}
	return cur, true
}

// Equal reports whether a and b are structurally identical.
// Map entry order is significant.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.n.Equal(b.n)
	case KindString:
		return a.s == b.s
	case KindSequence:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.entries) != len(b.entries) {
			return false
		}
		for i := range a.entries {
			if a.entries[i].Key != b.entries[i].Key || !Equal(a.entries[i].Value, b.entries[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// Equal reports whether v and w are structurally identical.
func (v Value) Equal(w Value) bool { return Equal(v, w) }

// String renders v in a compact JSON-like notation for diagnostics.
func (v Value) String() string {
	var b strings.Builder
	v.writeTo(&b)
	return b.String()
}

func (v Value) writeTo(b *strings.Builder) {
	switch v.kind {
	case KindNull:
		b.WriteString("null")
	case KindBool:
		b.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		b.WriteString(v.n.String())
	case KindString:
		b.WriteString(strconv.Quote(v.s))
	case KindSequence:
		b.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				b.WriteString(", ")
			}
			item.writeTo(b)
		}
		b.WriteByte(']')
	case KindMap:
		b.WriteByte('{')
		for i, e := range v.entries {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(e.Key))
			b.WriteString(": ")
			e.Value.writeTo(b)
		}
		b.WriteByte('}')
	}
}

// SortKeys returns v with the entries of every map sorted by key. It is used
// to compare documents against representations whose maps are unordered.
func SortKeys(v Value) Value {
	switch v.kind {
	case KindSequence:
		items := make([]Value, len(v.items))
		for i, item := range v.items {
			items[i] = SortKeys(item)
		}
		return Value{kind: KindSequence, items: items}
	case KindMap:
		entries := make([]Entry, len(v.entries))
		for i, e := range v.entries {
			entries[i] = Entry{Key: e.Key, Value: SortKeys(e.Value)}
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
		return Value{kind: KindMap, entries: entries}
	}
	return v
}
