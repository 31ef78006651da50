package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestCache(t *testing.T, size int, ttl time.Duration) (*LRUCache[string], *time.Time) {
	t.Helper()
	c := NewLRUCache[string](size, ttl)
	clock := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }
	return c, &clock
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(t, 2, time.Minute)
	c.Set("2024-01", "jan")
	c.Set("2024-02", "feb")

	_, ok := c.Get("2024-01")
	assert.True(t, ok)

	c.Set("2024-03", "mar")
	_, ok = c.Get("2024-02")
	assert.False(t, ok, "feb was least recently used")
	assert.Equal(t, 2, c.Size())
}

func TestLRUCache_TTL(t *testing.T) {
	c, clock := newTestCache(t, 10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	*clock = clock.Add(30 * time.Second)
	c.Set("b", "3")

	*clock = clock.Add(45 * time.Second)
	_, ok := c.Get("a")
	assert.False(t, ok)
	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	*clock = clock.Add(time.Minute)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 0, c.Size())
}

func TestLRUCache_DeleteAndPurge(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Delete("a")
	assert.Equal(t, 1, c.Size())

	c.Purge()
	assert.Equal(t, 0, c.Size())
	_, ok := c.Get("b")
	assert.False(t, ok)

	c.Set("c", "3")
	assert.Equal(t, 1, c.Size())
}

func TestManager(t *testing.T) {
	c, clock := newTestCache(t, 10, time.Minute)
	c.Set("a", "1")

	m := NewManager()
	m.Register(c)
	m.StartCleanup(time.Hour)

	*clock = clock.Add(2 * time.Minute)
	assert.Equal(t, 1, m.CleanNow())

	m.Stop()
	m.Stop()
}
