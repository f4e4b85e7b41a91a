package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCache_Expiry(t *testing.T) {
	c := NewTTLCache[string, int](10, 20*time.Millisecond)

	c.Set("short", 1)
	v, ok := c.Get("short")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	assert.Eventually(t, func() bool {
		_, ok := c.Get("short")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestTTLCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewTTLCache[string, int](2, 0)

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Len())

	c.Delete("a")
	assert.Equal(t, 1, c.Len())
}

func TestTTLCache_Concurrent(t *testing.T) {
	c := NewTTLCache[int, int](100, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set(i, i*i)
			_, _ = c.Get(i)
		}(i)
	}
	wg.Wait()

	v, ok := c.Get(7)
	assert.True(t, ok)
	assert.Equal(t, 49, v)
	assert.Equal(t, 50, c.Len())
}
