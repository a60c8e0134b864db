package cache

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestTTLCache_Expiry(t *testing.T) {
	clk := clock.NewMock()
	c := New[string, int](time.Minute, clk)

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	clk.Add(59 * time.Second)
	_, ok = c.Get("a")
	assert.True(t, ok)

	clk.Add(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestTTLCache_SetEvictsExpired(t *testing.T) {
	clk := clock.NewMock()
	c := New[string, int](time.Minute, clk)

	c.Set("a", 1)
	clk.Add(2 * time.Minute)
	c.Set("b", 2)

	assert.Equal(t, 1, c.Len())
}

func TestTTLCache_DeleteAndClear(t *testing.T) {
	c := New[string, string](time.Hour, nil)
	c.Set("a", "x")
	c.Set("b", "y")

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}
