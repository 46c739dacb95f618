package attrs

import (
	"reflect"
	"slices"
	"strings"
)

// Sequence returns the elements of v when v is a slice or an array of any
// element type.
func Sequence(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
	default:
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Mapping returns v as a Map when v is a Map or a map with string keys.
// Plain maps come back with their keys sorted.
func Mapping(v any) (Map, bool) {
	switch m := v.(type) {
	case nil:
		return nil, false
	case Map:
		return m, true
	case map[string]any:
		return FromMap(m), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	keys := rv.MapKeys()
	slices.SortFunc(keys, func(a, b reflect.Value) int {
		return strings.Compare(a.String(), b.String())
	})
	out := make(Map, 0, len(keys))
	for _, k := range keys {
		out = append(out, Pair{Key: k.String(), Value: rv.MapIndex(k).Interface()})
	}
	return out, true
}
