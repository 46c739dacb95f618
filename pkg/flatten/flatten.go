package flatten

import (
	"fmt"
	"strings"

	"github.com/yairfalse/nodefacts/pkg/attrs"
)

// Separator joins path segments into a full key.
const Separator = "_"

// UnsupportedValueError reports a tree position holding a value that is
// neither a mapping, a sequence nor a scalar.
type UnsupportedValueError struct {
	Path  []string
	Value any
}

func (e *UnsupportedValueError) Error() string {
	return fmt.Sprintf("flatten %s: unsupported value of type %T", strings.Join(e.Path, Separator), e.Value)
}

// Flatten expands root into a new Index.
//
// Every mapping records its child keys as values under its own path, then
// descends into each child with the key appended to the path. Sequences
// descend into their elements without extending the path. Scalars are
// recorded under the full joined path and under the last segment alone, so
// unrelated branches sharing a leaf name share the short key.
func Flatten(root attrs.Map) (*Index, error) {
	f := &flattener{index: NewIndex()}
	for _, p := range root {
		if err := f.visit([]string{p.Key}, p.Value); err != nil {
			return nil, err
		}
	}
	f.index.Dedup()
	return f.index, nil
}

type flattener struct {
	index *Index
}

func (f *flattener) visit(path []string, value any) error {
	switch v := value.(type) {
	case attrs.Map:
		for _, p := range v {
			if err := f.child(path, p.Key, p.Value); err != nil {
				return err
			}
		}
	case map[string]any:
		for _, k := range attrs.SortedKeys(v) {
			if err := f.child(path, k, v[k]); err != nil {
				return err
			}
		}
	case []any:
		for _, elem := range v {
			if err := f.visit(path, elem); err != nil {
				return err
			}
		}
	case []string:
		for _, elem := range v {
			f.record(path, elem)
		}
	default:
		if text, ok := attrs.Text(value); ok {
			f.record(path, text)
			return nil
		}
		if m, ok := attrs.Mapping(value); ok {
			return f.visit(path, m)
		}
		if elems, ok := attrs.Sequence(value); ok {
			return f.visit(path, elems)
		}
		return &UnsupportedValueError{Path: append([]string(nil), path...), Value: value}
	}
	return nil
}

func (f *flattener) child(path []string, key string, value any) error {
	f.record(path, key)
	next := make([]string, len(path)+1)
	copy(next, path)
	next[len(path)] = key
	return f.visit(next, value)
}

func (f *flattener) record(path []string, value string) {
	f.index.Add(strings.Join(path, Separator), value)
	f.index.Add(path[len(path)-1], value)
}
