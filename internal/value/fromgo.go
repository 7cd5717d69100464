package value

import (
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrUnsupportedType is returned by FromGo for channels, funcs, complex
// numbers and maps whose keys are not strings.
var ErrUnsupportedType = errors.New("unsupported Go type")

// ErrTooDeep is returned by FromGo when a Go value nests deeper than
// MaxGoDepth, which in practice means it contains a pointer cycle.
var ErrTooDeep = errors.New("go value nested too deeply")

// MaxGoDepth bounds the recursion of FromGo.
const MaxGoDepth = 1000

var timeType = reflect.TypeOf(time.Time{})

// FromGo builds a Value from a Go value using the same field naming rules as
// encoding/json: struct fields are named by their json tag, `omitempty` and
// `-` are honoured, anonymous untagged struct fields are flattened, string
// keyed maps are emitted in sorted key order, []byte becomes base64 text and
// time.Time becomes RFC 3339 text.
func FromGo(v any) (Value, error) {
	if v == nil {
		return Null(), nil
	}
	return fromReflect(reflect.ValueOf(v), 0)
}

func fromReflect(rv reflect.Value, depth int) (Value, error) {
	if depth > MaxGoDepth {
		return Value{}, ErrTooDeep
	}
	if !rv.IsValid() {
		return Null(), nil
	}
	if rv.Type() == timeType {
		if !rv.CanInterface() {
			return Value{}, fmt.Errorf("%w: time.Time behind unexported field", ErrUnsupportedType)
		}
		return FromString(rv.Interface().(time.Time).Format(time.RFC3339Nano)), nil
	}

	switch rv.Kind() {
	case reflect.Bool:
		return FromBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return FromInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return FromUint(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return FromFloat(rv.Float()), nil
	case reflect.String:
		return FromString(rv.String()), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return fromReflect(rv.Elem(), depth+1)
	case reflect.Slice:
		if rv.IsNil() {
			return Null(), nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return FromString(base64.StdEncoding.EncodeToString(rv.Bytes())), nil
		}
		return fromList(rv, depth)
	case reflect.Array:
		return fromList(rv, depth)
	case reflect.Map:
		if rv.IsNil() {
			return Null(), nil
		}
		return fromMap(rv, depth)
	case reflect.Struct:
		return fromStruct(rv, depth)
	}
	return Value{}, fmt.Errorf("%w: %s", ErrUnsupportedType, rv.Type())
}

func fromList(rv reflect.Value, depth int) (Value, error) {
	items := make([]Value, rv.Len())
	for i := range items {
		item, err := fromReflect(rv.Index(i), depth+1)
		if err != nil {
			return Value{}, fmt.Errorf("[%d]: %w", i, err)
		}
		items[i] = item
	}
	return Value{kind: KindSequence, items: items}, nil
}

func fromMap(rv reflect.Value, depth int) (Value, error) {
	if rv.Type().Key().Kind() != reflect.String {
		return Value{}, fmt.Errorf("%w: map key %s", ErrUnsupportedType, rv.Type().Key())
	}
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		item, err := fromReflect(rv.MapIndex(k), depth+1)
		if err != nil {
			return Value{}, fmt.Errorf("%s: %w", k.String(), err)
		}
		entries = append(entries, Entry{Key: k.String(), Value: item})
	}
	return Value{kind: KindMap, entries: entries}, nil
}

func fromStruct(rv reflect.Value, depth int) (Value, error) {
	fields := structFields(rv.Type())
	entries := make([]Entry, 0, len(fields))
	for _, f := range fields {
		fv, ok := fieldByIndex(rv, f.index)
		if !ok {
			continue
		}
		if f.omitEmpty && isEmpty(fv) {
			continue
		}
		item, err := fromReflect(fv, depth+1)
		if err != nil {
			return Value{}, fmt.Errorf("%s: %w", f.name, err)
		}
		entries = append(entries, Entry{Key: f.name, Value: item})
	}
	return Value{kind: KindMap, entries: entries}, nil
}

// fieldByIndex walks an index path, stopping at nil embedded pointers.
func fieldByIndex(rv reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return reflect.Value{}, false
			}
			rv = rv.Elem()
		}
		rv = rv.Field(x)
	}
	return rv, true
}

func isEmpty(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return rv.Len() == 0
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return rv.IsNil()
	}
	return false
}

type field struct {
	name      string
	index     []int
	omitEmpty bool
}

var fieldCache sync.Map // map[reflect.Type][]field

func structFields(t reflect.Type) []field {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]field)
	}
	fields := collectFields(t, nil)
	fieldCache.Store(t, fields)
	return fields
}

// collectFields lists exported fields in declaration order. Fields promoted
// from embedded structs are kept unless an outer field has the same name.
func collectFields(t reflect.Type, index []int) []field {
	var out []field
	seen := map[string]bool{}
	var promoted [][]field

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		idx := append(append([]int{}, index...), i)

		if sf.Anonymous && name == "" {
			ft := sf.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				promoted = append(promoted, collectFields(ft, idx))
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		seen[name] = true
		out = append(out, field{
			name:      name,
			index:     idx,
			omitEmpty: strings.Contains(","+opts+",", ",omitempty,"),
		})
	}

	for _, group := range promoted {
		for _, f := range group {
			if seen[f.name] {
				continue
			}
			seen[f.name] = true
			out = append(out, f)
		}
	}
	return out
}
