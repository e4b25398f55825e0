package uniq

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// Canonicalize renders arbitrary argument data as a deterministic string.
//
// Scalars use their natural string form. Sequences keep element order and
// render as a quoted list, e.g. ["a", "1"]. Mappings are rendered as the
// flattened key/value list sorted by canonical key, wrapped in braces, so
// map iteration order never affects the result. Structs are first
// normalized through JSON, which makes a struct argument and its decoded
// JSON form (as read back from a worker registry) fingerprint identically.
// Numbers are rendered so that 5, int64(5) and float64(5) agree.
func Canonicalize(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x, 64)
	case json.Number:
		return canonicalNumber(x)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = Canonicalize(e)
		}
		return quoteList("[", parts, "]")
	case map[string]any:
		pairs := make([]canonicalPair, 0, len(x))
		for k, e := range x {
			pairs = append(pairs, canonicalPair{key: k, value: Canonicalize(e)})
		}
		return renderPairs(pairs)
	}
	return canonicalValue(reflect.ValueOf(v))
}

func canonicalValue(rv reflect.Value) string {
	switch rv.Kind() {
	case reflect.Invalid:
		return ""
	case reflect.Interface:
		if rv.IsNil() {
			return ""
		}
		return Canonicalize(rv.Elem().Interface())
	case reflect.Pointer:
		if rv.IsNil() {
			return ""
		}
		if rv.Elem().Kind() == reflect.Struct {
			return canonicalJSON(rv.Interface())
		}
		return Canonicalize(rv.Elem().Interface())
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return formatFloat(rv.Float(), 32)
	case reflect.Float64:
		return formatFloat(rv.Float(), 64)
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes())
		}
		return canonicalSequence(rv)
	case reflect.Array:
		return canonicalSequence(rv)
	case reflect.Map:
		pairs := make([]canonicalPair, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			pairs = append(pairs, canonicalPair{
				key:   Canonicalize(iter.Key().Interface()),
				value: Canonicalize(iter.Value().Interface()),
			})
		}
		return renderPairs(pairs)
	case reflect.Struct:
		return canonicalJSON(rv.Interface())
	}
	return fmt.Sprint(rv.Interface())
}

func canonicalSequence(rv reflect.Value) string {
	parts := make([]string, rv.Len())
	for i := range parts {
		parts[i] = Canonicalize(rv.Index(i).Interface())
	}
	return quoteList("[", parts, "]")
}

type canonicalPair struct {
	key   string
	value string
}

// renderPairs sorts by key, then by value to break ties between distinct
// keys that render identically (e.g. 1 and "1" in a map[any]any).
func renderPairs(pairs []canonicalPair) string {
	slices.SortFunc(pairs, func(a, b canonicalPair) int {
		if c := strings.Compare(a.key, b.key); c != 0 {
			return c
		}
		return strings.Compare(a.value, b.value)
	})
	parts := make([]string, 0, 2*len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.key, p.value)
	}
	return quoteList("{", parts, "}")
}

func quoteList(open string, parts []string, close string) string {
	var b strings.Builder
	b.WriteString(open)
	for i, p := range parts {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Quote(p))
	}
	b.WriteString(close)
	return b.String()
}

// canonicalJSON normalizes v through a JSON round trip. Values that cannot
// be marshaled fall back to their fmt representation.
func canonicalJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return fmt.Sprint(v)
	}
	return Canonicalize(out)
}

func canonicalNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		return strconv.FormatUint(u, 10)
	}
	if f, err := n.Float64(); err == nil {
		return formatFloat(f, 64)
	}
	return n.String()
}

func formatFloat(f float64, bits int) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}
