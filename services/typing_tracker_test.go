package services

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypingTracker_Set(t *testing.T) {
	tr := NewTypingTracker()

	assert.True(t, tr.Set("c1", "u2", true))
	assert.False(t, tr.Set("c1", "u2", true), "duplicate add is a no-op")
	assert.True(t, tr.Set("c1", "u1", true))
	assert.Equal(t, []string{"u1", "u2"}, tr.Typing("c1"))
	assert.True(t, tr.IsTyping("c1"))

	assert.True(t, tr.Set("c1", "u1", false))
	assert.False(t, tr.Set("c1", "u1", false), "removing an absent user is a no-op")
	assert.True(t, tr.Set("c1", "u2", false))
	assert.False(t, tr.IsTyping("c1"))
	assert.Empty(t, tr.Snapshot(), "empty sets are dropped")
}

func TestTypingTracker_SetIgnoresEmptyIDs(t *testing.T) {
	tr := NewTypingTracker()
	assert.False(t, tr.Set("", "u1", true))
	assert.False(t, tr.Set("c1", "", true))
	assert.Empty(t, tr.Snapshot())
}

func TestTypingTracker_Clear(t *testing.T) {
	tr := NewTypingTracker()
	tr.Set("c1", "u2", true)
	tr.Set("c2", "u3", true)

	tr.Clear()
	assert.Empty(t, tr.Snapshot())
	assert.Empty(t, tr.Typing("c1"))
}

// announcer, debouncer'ın announce çağrılarını kaydeder.
type announcer struct {
	mu    sync.Mutex
	calls []bool
}

func (a *announcer) announce(isTyping bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, isTyping)
}

func (a *announcer) get() []bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]bool(nil), a.calls...)
}

func TestTypingDebouncer_KeystrokeBurst(t *testing.T) {
	clk := clock.NewMock()
	a := &announcer{}
	d := NewTypingDebouncer(2*time.Second, clk, a.announce)

	for i := 0; i < 5; i++ {
		d.Keystroke()
		clk.Add(300 * time.Millisecond)
	}
	require.Equal(t, []bool{true}, a.get())
	assert.True(t, d.Typing())

	clk.Add(2 * time.Second)
	assert.Eventually(t, func() bool { return len(a.get()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []bool{true, false}, a.get())
	assert.False(t, d.Typing())

	d.Keystroke()
	assert.Equal(t, []bool{true, false, true}, a.get(), "typing after idle announces again")
}

func TestTypingDebouncer_Stop(t *testing.T) {
	clk := clock.NewMock()
	a := &announcer{}
	d := NewTypingDebouncer(2*time.Second, clk, a.announce)

	d.Stop()
	assert.Empty(t, a.get(), "stop while idle announces nothing")

	d.Keystroke()
	d.Stop()
	assert.Equal(t, []bool{true, false}, a.get())

	clk.Add(5 * time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, []bool{true, false}, a.get(), "cancelled timer never fires")
}
