package testutil

import (
	"fmt"
	"sync"
	"time"
)

// StubClock is a cfs.Clock that only moves when told to. Session expiry
// tests drive it with Advance.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock starts at 2024-01-15 10:30:00 UTC. Metadata timestamps written
// through it are stable across runs.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
}

// WallClock starts at the current time. Use it where a real client checks
// expiry against wall time, like the cookie jar of an HTTP test client.
func WallClock() *StubClock {
	return NewStubClock(time.Now().UTC().Truncate(time.Second))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// StubIDGenerator hands out session tokens "token-1", "token-2", ... so
// tests can predict them.
type StubIDGenerator struct {
	mu sync.Mutex
	n  int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("token-%d", g.n)
}
