// Package flatten turns nested attribute trees into flat key=value facts.
package flatten

// Index is an insertion-ordered multimap from flattened key to a
// duplicate-free list of string values.
//
// Lookups of absent keys return nil and never create the key.
type Index struct {
	keys   []string
	values map[string][]string
	seen   map[string]map[string]struct{}
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		values: make(map[string][]string),
		seen:   make(map[string]map[string]struct{}),
	}
}

// Add appends value under key unless it is already present.
// Reports whether the value was added.
func (ix *Index) Add(key, value string) bool {
	set, ok := ix.seen[key]
	if !ok {
		set = make(map[string]struct{})
		ix.seen[key] = set
		ix.keys = append(ix.keys, key)
	}
	if _, dup := set[value]; dup {
		return false
	}
	set[value] = struct{}{}
	ix.values[key] = append(ix.values[key], value)
	return true
}

// Values returns a copy of the values stored under key.
func (ix *Index) Values(key string) []string {
	vals, ok := ix.values[key]
	if !ok {
		return nil
	}
	out := make([]string, len(vals))
	copy(out, vals)
	return out
}

// Has reports whether key has been recorded.
func (ix *Index) Has(key string) bool {
	_, ok := ix.values[key]
	return ok
}

// Keys returns all keys in first-insertion order.
func (ix *Index) Keys() []string {
	out := make([]string, len(ix.keys))
	copy(out, ix.keys)
	return out
}

// Len returns the number of keys.
func (ix *Index) Len() int {
	return len(ix.keys)
}

// FactCount returns the number of key/value pairs.
func (ix *Index) FactCount() int {
	n := 0
	for _, vals := range ix.values {
		n += len(vals)
	}
	return n
}

// Each calls fn for every key in insertion order. The values slice must
// not be modified.
func (ix *Index) Each(fn func(key string, values []string)) {
	for _, k := range ix.keys {
		fn(k, ix.values[k])
	}
}

// Dedup removes repeated values from every key, keeping first occurrences,
// and rebuilds the membership sets. Running it twice is a no-op.
func (ix *Index) Dedup() {
	for _, k := range ix.keys {
		vals := ix.values[k]
		set := make(map[string]struct{}, len(vals))
		out := vals[:0]
		for _, v := range vals {
			if _, dup := set[v]; dup {
				continue
			}
			set[v] = struct{}{}
			out = append(out, v)
		}
		ix.values[k] = out
		ix.seen[k] = set
	}
}

// Map returns a plain map copy of the index.
func (ix *Index) Map() map[string][]string {
	out := make(map[string][]string, len(ix.keys))
	for _, k := range ix.keys {
		out[k] = ix.Values(k)
	}
	return out
}
