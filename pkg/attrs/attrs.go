// Package attrs defines the attribute tree model for nodefacts.
//
// A tree is built from three kinds of values: mappings (Map, or any map
// with string keys), sequences (any slice or array) and scalars. Map keeps the insertion
// order of its keys so that anything derived from a tree is reproducible.
package attrs

// Pair is one key/value entry of a Map.
type Pair struct {
	Key   string
	Value any
}

// Map is an insertion-ordered mapping node.
type Map []Pair

// Get returns the value stored under key.
func (m Map) Get(key string) (any, bool) {
	for _, p := range m {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys in insertion order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for _, p := range m {
		keys = append(keys, p.Key)
	}
	return keys
}

// Set replaces the value of an existing key or appends a new pair.
func (m Map) Set(key string, value any) Map {
	for i := range m {
		if m[i].Key == key {
			m[i].Value = value
			return m
		}
	}
	return append(m, Pair{Key: key, Value: value})
}

// Delete returns m without key, preserving order.
func (m Map) Delete(key string) Map {
	out := make(Map, 0, len(m))
	for _, p := range m {
		if p.Key != key {
			out = append(out, p)
		}
	}
	return out
}

// FromMap converts a plain map into a Map with keys in sorted order.
// Nested plain maps are left as they are.
func FromMap(m map[string]any) Map {
	keys := SortedKeys(m)
	out := make(Map, 0, len(keys))
	for _, k := range keys {
		out = append(out, Pair{Key: k, Value: m[k]})
	}
	return out
}
