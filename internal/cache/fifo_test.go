package cache_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ivolkova/luthier/internal/cache"
)

func TestFIFO_Basic(t *testing.T) {
	t.Run("put and get", func(t *testing.T) {
		c := cache.NewFIFO[string, int](3)

		c.Put("a", 1)
		c.Put("b", 2)

		val, ok := c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 1, val)

		val, ok = c.Get("b")
		assert.True(t, ok)
		assert.Equal(t, 2, val)

		assert.Equal(t, 2, c.Len())
	})

	t.Run("get non-existent", func(t *testing.T) {
		c := cache.NewFIFO[string, int](3)

		val, ok := c.Get("missing")
		assert.False(t, ok)
		assert.Equal(t, 0, val)
	})

	t.Run("update keeps insertion position", func(t *testing.T) {
		c := cache.NewFIFO[string, int](2)

		c.Put("a", 1)
		c.Put("b", 2)
		c.Put("a", 10)
		c.Put("c", 3)

		// "a" was inserted first; the update must not have refreshed it.
		_, ok := c.Get("a")
		assert.False(t, ok)

		val, ok := c.Get("b")
		assert.True(t, ok)
		assert.Equal(t, 2, val)

		val, ok = c.Get("c")
		assert.True(t, ok)
		assert.Equal(t, 3, val)
	})
}

func TestFIFO_Eviction(t *testing.T) {
	t.Run("evicts oldest inserted first", func(t *testing.T) {
		c := cache.NewFIFO[string, int](3)

		c.Put("a", 1)
		c.Put("b", 2)
		c.Put("c", 3)
		c.Put("d", 4)

		_, ok := c.Get("a")
		assert.False(t, ok)

		for i, key := range []string{"b", "c", "d"} {
			val, ok := c.Get(key)
			assert.True(t, ok)
			assert.Equal(t, i+2, val)
		}
		assert.Equal(t, 3, c.Len())
	})

	t.Run("get does not refresh eviction order", func(t *testing.T) {
		c := cache.NewFIFO[string, int](2)

		c.Put("a", 1)
		c.Put("b", 2)
		c.Get("a")
		c.Put("c", 3)

		// Even though "a" was read last, it is still the oldest insert.
		_, ok := c.Get("a")
		assert.False(t, ok)

		_, ok = c.Get("b")
		assert.True(t, ok)
	})

	t.Run("capacity 1000 holds exactly 1000 of 1001 inserts", func(t *testing.T) {
		c := cache.NewFIFO[string, string](1000)

		for i := 0; i < 1001; i++ {
			c.Put(fmt.Sprintf("hash-%04d", i), fmt.Sprintf("key-%04d", i))
		}

		assert.Equal(t, 1000, c.Len())

		_, ok := c.Get("hash-0000")
		assert.False(t, ok, "first insert should have been evicted")

		_, ok = c.Get("hash-0001")
		assert.True(t, ok)
		_, ok = c.Get("hash-1000")
		assert.True(t, ok)
	})
}

func TestFIFO_Remove(t *testing.T) {
	t.Run("remove by key", func(t *testing.T) {
		c := cache.NewFIFO[string, int](3)

		c.Put("a", 1)
		assert.True(t, c.Remove("a"))
		assert.False(t, c.Remove("a"))
		assert.Equal(t, 0, c.Len())
	})

	t.Run("remove by value purges all matches", func(t *testing.T) {
		c := cache.NewFIFO[string, string](4)

		c.Put("h1", "uploads/one.png")
		c.Put("h2", "uploads/two.png")
		c.Put("h3", "uploads/one.png")

		assert.Equal(t, 2, c.RemoveValue("uploads/one.png"))
		assert.Equal(t, 1, c.Len())
		assert.Equal(t, 0, c.RemoveValue("uploads/one.png"))

		_, ok := c.Get("h2")
		assert.True(t, ok)
	})
}

func TestFIFO_InvalidCapacity(t *testing.T) {
	assert.Panics(t, func() {
		cache.NewFIFO[string, string](0)
	})
}
