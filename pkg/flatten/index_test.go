package flatten

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndex_AddDeduplicates(t *testing.T) {
	ix := NewIndex()

	assert.True(t, ix.Add("k", "a"))
	assert.True(t, ix.Add("k", "b"))
	assert.False(t, ix.Add("k", "a"))

	assert.Equal(t, []string{"a", "b"}, ix.Values("k"))
	assert.Equal(t, 2, ix.FactCount())
}

func TestIndex_AbsentKey(t *testing.T) {
	ix := NewIndex()

	assert.Nil(t, ix.Values("missing"))
	assert.False(t, ix.Has("missing"))
	assert.Equal(t, 0, ix.Len(), "lookup must not create keys")
}

func TestIndex_KeysKeepInsertionOrder(t *testing.T) {
	ix := NewIndex()
	ix.Add("z", "1")
	ix.Add("a", "1")
	ix.Add("z", "2")
	ix.Add("m", "1")

	assert.Equal(t, []string{"z", "a", "m"}, ix.Keys())
}

func TestIndex_ValuesReturnsCopy(t *testing.T) {
	ix := NewIndex()
	ix.Add("k", "a")

	vals := ix.Values("k")
	vals[0] = "changed"

	assert.Equal(t, []string{"a"}, ix.Values("k"))
}

func TestIndex_DedupIdempotent(t *testing.T) {
	ix := NewIndex()
	ix.Add("k", "a")
	ix.Add("k", "b")
	// Simulate partial state carried in from elsewhere.
	ix.values["k"] = append(ix.values["k"], "a", "b", "c")

	ix.Dedup()
	assert.Equal(t, []string{"a", "b", "c"}, ix.Values("k"))

	ix.Dedup()
	assert.Equal(t, []string{"a", "b", "c"}, ix.Values("k"))
	assert.False(t, ix.Add("k", "c"))
}

func TestIndex_Each(t *testing.T) {
	ix := NewIndex()
	ix.Add("b", "1")
	ix.Add("a", "2")
	ix.Add("b", "3")

	var got []string
	ix.Each(func(key string, values []string) {
		for _, v := range values {
			got = append(got, key+"="+v)
		}
	})

	assert.Equal(t, []string{"b=1", "b=3", "a=2"}, got)
}
