package clock

import "sync"

// Lamport is a logical clock used to order record edits across devices
// without trusting wall-clock time. Wall clocks on rural devices drift and
// get reset; the Lamport counter only ever moves forward.
type Lamport struct {
	counter int64
	mu      sync.Mutex
}

// New creates a Lamport clock starting at the given counter value.
// Pass the last persisted value when restoring after restart so the
// clock never moves backwards.
func New(start int64) *Lamport {
	return &Lamport{counter: start}
}

// Tick increments the counter and returns the new value.
// Called for every local edit.
func (c *Lamport) Tick() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counter++
	return c.counter
}

// Observe merges a counter value seen on a remote record:
// counter = max(local, remote) + 1.
func (c *Lamport) Observe(remote int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if remote > c.counter {
		c.counter = remote
	}
	c.counter++

	return c.counter
}

// Now returns the current counter value without advancing it.
func (c *Lamport) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.counter
}
