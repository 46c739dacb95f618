package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequence(t *testing.T) {
	got, ok := Sequence([]int{80, 443})
	assert.True(t, ok)
	assert.Equal(t, []any{80, 443}, got)

	got, ok = Sequence([2]string{"a", "b"})
	assert.True(t, ok)
	assert.Equal(t, []any{"a", "b"}, got)

	got, ok = Sequence([]float64(nil))
	assert.True(t, ok)
	assert.Empty(t, got)

	for _, v := range []any{nil, "x", 3, map[string]int{}} {
		_, ok := Sequence(v)
		assert.False(t, ok, "%#v is not a sequence", v)
	}
}

func TestMapping(t *testing.T) {
	got, ok := Mapping(map[string]string{"zone": "b", "app": "web"})
	assert.True(t, ok)
	assert.Equal(t, Map{{Key: "app", Value: "web"}, {Key: "zone", Value: "b"}}, got)

	type label string
	got, ok = Mapping(map[label]int{"b": 2, "a": 1})
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got.Keys())

	ordered := Map{{Key: "z", Value: 1}, {Key: "a", Value: 2}}
	got, ok = Mapping(ordered)
	assert.True(t, ok)
	assert.Equal(t, ordered, got)

	for _, v := range []any{nil, "x", []any{}, map[int]string{1: "a"}} {
		_, ok := Mapping(v)
		assert.False(t, ok, "%#v is not a mapping", v)
	}
}
