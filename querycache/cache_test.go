package querycache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetMiss(t *testing.T) {
	c := New[string, int](2)
	_, ok := c.Get("absent")
	assert.False(t, ok)
}

func TestPutThenGet(t *testing.T) {
	c := New[string, int](2)
	c.Put("a", 1)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestPutOverwrites(t *testing.T) {
	c := New[string, int](2)
	c.Put("a", 1)
	c.Put("a", 2)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)

	// Touch "a" so "b" becomes the least recently used entry.
	c.Get("a")

	c.Put("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")

	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)

	assert.Equal(t, 2, c.Len())
}
